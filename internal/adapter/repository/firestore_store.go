package repository

import (
	"context"
	stderrors "errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gamescrow/pkg/errors"
)

const (
	ordersCollection         = "orders"
	activeItemsCollection    = "activeItems"
	messagesCollection       = "messages"
	readCursorsCollection    = "readCursors"
	walletsCollection        = "wallets"
	walletEntriesCollection  = "walletEntries"
	idempotencyKeyCollection = "idempotencyKeys"
)

// FirestoreStore runs Firestore transactions. Firestore requires every read
// in a transaction to happen before the first write; the usecases read the
// order and both wallets up front for that reason.
type FirestoreStore struct {
	client *firestore.Client
}

type firestoreTxKey struct{}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(firestoreTxKey{}).(*firestore.Transaction); ok {
		return fn(ctx)
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(context.WithValue(ctx, firestoreTxKey{}, tx))
	})
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if status.Code(err) == codes.AlreadyExists {
		return errors.Conflict("Item already has an active order")
	}
	return errors.Internal("Transaction failed", err)
}

func firestoreTx(ctx context.Context) *firestore.Transaction {
	tx, _ := ctx.Value(firestoreTxKey{}).(*firestore.Transaction)
	return tx
}

func getDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx := firestoreTx(ctx); tx != nil {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

func setDoc(ctx context.Context, ref *firestore.DocumentRef, data interface{}) error {
	if tx := firestoreTx(ctx); tx != nil {
		return tx.Set(ref, data)
	}
	_, err := ref.Set(ctx, data)
	return err
}

func createDoc(ctx context.Context, ref *firestore.DocumentRef, data interface{}) error {
	if tx := firestoreTx(ctx); tx != nil {
		return tx.Create(ref, data)
	}
	_, err := ref.Create(ctx, data)
	return err
}

func deleteDoc(ctx context.Context, ref *firestore.DocumentRef) error {
	if tx := firestoreTx(ctx); tx != nil {
		return tx.Delete(ref)
	}
	_, err := ref.Delete(ctx)
	return err
}

func queryDocs(ctx context.Context, q firestore.Query) *firestore.DocumentIterator {
	if tx := firestoreTx(ctx); tx != nil {
		return tx.Documents(q)
	}
	return q.Documents(ctx)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
