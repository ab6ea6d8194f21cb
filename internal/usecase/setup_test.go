package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/adapter/repository"
	"gamescrow/internal/domain/entity"
	"gamescrow/internal/infrastructure/catalog"
	"gamescrow/internal/infrastructure/ratelimit"
	"gamescrow/pkg/syncutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type publishedEvent struct {
	Topic   string
	Event   string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(topic, event string, payload interface{}) {
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event, Payload: payload})
	p.mu.Unlock()
}

func (p *recordingPublisher) On(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

type fakeStorage struct{}

func (fakeStorage) GenerateSignedUploadURL(ctx context.Context, objectName, contentType string, expires time.Duration) (string, error) {
	return "https://storage.example.com/" + objectName + "?signed=1", nil
}

const (
	testBuyer  = "buyer-1"
	testSeller = "seller-1"
	testItemID = "item-1"
)

var (
	buyerActor  = entity.Actor{UserID: testBuyer, Role: entity.RoleUser}
	sellerActor = entity.Actor{UserID: testSeller, Role: entity.RoleUser}
	adminActor  = entity.Actor{UserID: "admin-1", Role: entity.RoleAdmin}
)

type testEnv struct {
	ctx       context.Context
	clock     *fakeClock
	publisher *recordingPublisher
	catalog   *catalog.MemoryCatalog

	wallet   *WalletUseCase
	orders   *OrderUseCase
	disputes *DisputeUseCase
	chat     *ChatUseCase
	sweeper  *EscrowSweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	orderRepo := repository.NewMemoryOrderRepository(store)
	chatRepo := repository.NewMemoryChatRepository(store)
	walletRepo := repository.NewMemoryWalletRepository(store)
	idemRepo := repository.NewMemoryIdempotencyRepository(store)

	clock := newFakeClock()
	publisher := &recordingPublisher{}
	items := catalog.NewMemoryCatalog(entity.Item{
		ID:       testItemID,
		SellerID: testSeller,
		Title:    "Mythic account",
		Price:    decimal.RequireFromString("1000.00"),
		Status:   entity.ItemStatusActive,
	})
	locks := syncutil.NewKeyLock()
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Limit{
		ratelimit.ActionSendMessage: {PerMinute: 600, Burst: 100},
	})

	wallet := NewWalletUseCase(walletRepo, store, 2, clock)
	orders := NewOrderUseCase(store, orderRepo, idemRepo, chatRepo, wallet, items, publisher, locks, clock, OrderConfig{
		AcceptWindow: time.Hour,
		TradeWindow:  24 * time.Hour,
	})

	return &testEnv{
		ctx:       context.Background(),
		clock:     clock,
		publisher: publisher,
		catalog:   items,
		wallet:    wallet,
		orders:    orders,
		disputes:  NewDisputeUseCase(orders),
		chat:      NewChatUseCase(store, orderRepo, chatRepo, publisher, fakeStorage{}, limiter, locks, clock, 15*time.Minute),
		sweeper:   NewEscrowSweeper(orders, time.Minute, true),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (env *testEnv) fund(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := env.wallet.Deposit(env.ctx, userID, dec(amount), adminActor.UserID)
	require.NoError(t, err)
}

func (env *testEnv) walletOf(t *testing.T, userID string) *entity.WalletView {
	t.Helper()
	w, err := env.wallet.GetWallet(env.ctx, userID)
	require.NoError(t, err)
	return w
}

func (env *testEnv) buy(t *testing.T) *entity.Order {
	t.Helper()
	order, replayed, err := env.orders.CreateOrder(env.ctx, testBuyer, CreateOrderInput{ItemID: testItemID})
	require.NoError(t, err)
	require.False(t, replayed)
	return order
}

// inTrade returns an accepted order.
func (env *testEnv) inTrade(t *testing.T) *entity.Order {
	t.Helper()
	order := env.buy(t)
	order, err := env.orders.Accept(env.ctx, order.ID, testSeller)
	require.NoError(t, err)
	return order
}
