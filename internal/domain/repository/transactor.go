package repository

import "context"

// Transactor runs fn in one atomic unit. The transaction travels in the
// context handed to fn; repositories called with that context join it, and a
// nested RunInTx joins the outer transaction instead of opening a new one.
// fn may be invoked more than once by optimistic backends, so it must not
// have effects outside the store.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
