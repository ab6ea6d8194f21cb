package entity

import "github.com/shopspring/decimal"

const ItemStatusActive = "active"

// Item is the catalog's view of a listing. This service never writes items.
type Item struct {
	ID       string          `json:"id"`
	SellerID string          `json:"sellerId"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"` // active, sold, suspended
	Stock    int64           `json:"stock"`  // 0 means not tracked
}

func (i *Item) IsAvailable() bool {
	return i.Status == ItemStatusActive
}

func (i *Item) CanSupply(quantity int64) bool {
	return i.Stock == 0 || quantity <= i.Stock
}
