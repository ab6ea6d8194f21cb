package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/service"
	"gamescrow/pkg/errors"
)

const productsCollection = "products"

// firestoreProduct is the subset of the marketplace's product document the
// escrow core reads. The listing service owns these documents.
type firestoreProduct struct {
	ID        string     `firestore:"id"`
	SellerID  string     `firestore:"sellerId"`
	Title     string     `firestore:"title"`
	Price     float64    `firestore:"price"`
	Status    string     `firestore:"status"`
	Stock     int64      `firestore:"stock"`
	DeletedAt *time.Time `firestore:"deletedAt,omitempty"`
}

type firestoreProductCatalog struct {
	client *firestore.Client
}

// NewFirestoreProductCatalog reads items straight from the products collection.
func NewFirestoreProductCatalog(client *firestore.Client) service.ItemCatalog {
	return &firestoreProductCatalog{
		client: client,
	}
}

func (r *firestoreProductCatalog) GetItem(ctx context.Context, id string) (*entity.Item, error) {
	doc, err := r.client.Collection(productsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Item", err)
		}
		return nil, errors.UpstreamUnavailable("Failed to get item", err)
	}

	var product firestoreProduct
	if err := doc.DataTo(&product); err != nil {
		return nil, errors.Internal("Failed to parse item data", err)
	}

	status := product.Status
	if product.DeletedAt != nil {
		status = "deleted"
	}

	return &entity.Item{
		ID:       doc.Ref.ID,
		SellerID: product.SellerID,
		Title:    product.Title,
		Price:    decimal.NewFromFloat(product.Price),
		Status:   status,
		Stock:    product.Stock,
	}, nil
}
