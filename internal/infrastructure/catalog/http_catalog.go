// Package catalog looks up listings in the marketplace's item service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/logger"
)

var (
	// MaxNumOfFailingRequests is how many requests the breaker sees before it may trip.
	MaxNumOfFailingRequests = 10
	FailingRatio            = 0.6
)

type HTTPCatalog struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewHTTPCatalog(baseURL string, timeout time.Duration) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "item-catalog",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return int(counts.Requests) > MaxNumOfFailingRequests && ratio >= FailingRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// itemResponse accepts both the bare item and the {data: item} envelope.
type itemResponse struct {
	Data *entity.Item `json:"data"`
	entity.Item
}

func (c *HTTPCatalog) GetItem(ctx context.Context, itemID string) (*entity.Item, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, itemID)
	})
	if err != nil {
		return nil, errors.UpstreamUnavailable("Item catalog is unavailable", err)
	}
	item, _ := result.(*entity.Item)
	if item == nil {
		return nil, errors.NotFound("Item", nil)
	}
	return item, nil
}

// fetch returns a nil item for a 404 so unknown ids do not trip the breaker.
func (c *HTTPCatalog) fetch(ctx context.Context, itemID string) (*entity.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/items/"+url.PathEscape(itemID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode item: %v", err)
	}
	item := body.Item
	if body.Data != nil {
		item = *body.Data
	}
	if item.ID == "" {
		item.ID = itemID
	}
	return &item, nil
}
