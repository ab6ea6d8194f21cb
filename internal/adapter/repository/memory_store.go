package repository

import (
	"context"
	"sync"

	"gamescrow/internal/domain/entity"
)

// MemoryStore keeps all state in process. Transactions are serialised by a
// single mutex and work on a copy of the state that replaces the live one
// on commit, so a failed transaction leaves nothing behind. Stored values
// are cloned on the way in and out.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	orders   map[string]*entity.Order
	wallets  map[string]*entity.Wallet
	entries  []*entity.WalletEntry
	messages map[string][]*entity.ChatMessage
	cursors  map[string]*entity.ReadCursor
	idem     map[string]string
}

type memoryTxKey struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			orders:   make(map[string]*entity.Order),
			wallets:  make(map[string]*entity.Wallet),
			messages: make(map[string][]*entity.ChatMessage),
			cursors:  make(map[string]*entity.ReadCursor),
			idem:     make(map[string]string),
		},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		orders:   make(map[string]*entity.Order, len(s.orders)),
		wallets:  make(map[string]*entity.Wallet, len(s.wallets)),
		entries:  s.entries[:len(s.entries):len(s.entries)],
		messages: make(map[string][]*entity.ChatMessage, len(s.messages)),
		cursors:  make(map[string]*entity.ReadCursor, len(s.cursors)),
		idem:     make(map[string]string, len(s.idem)),
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v[:len(v):len(v)]
	}
	for k, v := range s.cursors {
		c.cursors[k] = v
	}
	for k, v := range s.idem {
		c.idem[k] = v
	}
	return c
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memoryTxKey{}).(*memoryState); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, work)); err != nil {
		return err
	}
	s.state = work
	return nil
}

// with runs fn against the transaction's working state when ctx carries
// one, otherwise against the live state under the store lock.
func (s *MemoryStore) with(ctx context.Context, fn func(st *memoryState) error) error {
	if st, ok := ctx.Value(memoryTxKey{}).(*memoryState); ok {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}
