package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"order-service/errs"
)

// Product is the catalog snapshot the order service consumes: current name,
// unit price and available stock.
type Product struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Active bool            `json:"active"`
}

// ProductCatalogClient is the contract with the product service. AdjustStock
// takes a delta (negative for a sale) and fails with InsufficientStock if the
// resulting stock would go below zero.
type ProductCatalogClient interface {
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) error
}

// HTTPProductClient talks to the product service over REST.
type HTTPProductClient struct {
	baseURL string
	client  *http.Client
}

var _ ProductCatalogClient = (*HTTPProductClient)(nil)

func NewProductClient(baseURL string, timeout time.Duration) *HTTPProductClient {
	return &HTTPProductClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPProductClient) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	url := fmt.Sprintf("%s/api/v1/products/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.UpstreamError{Service: "product", Err: err}
	}
	setAuthHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.UpstreamError{Service: "product", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &errs.NotFoundError{Resource: "product", ID: productID}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var product Product
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, &errs.UpstreamError{Service: "product", Err: err}
		}
		return &product, nil
	default:
		return nil, &errs.UpstreamError{
			Service: "product",
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// AdjustStock applies delta to the product's stock through the catalog's
// absolute-stock PATCH endpoint: read the current stock, add the delta,
// write the result. The below-zero guard runs locally before the write; the
// product service enforces the same rule on its side.
func (c *HTTPProductClient) AdjustStock(ctx context.Context, productID int64, delta int) error {
	product, err := c.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	newStock := product.Stock + delta
	if newStock < 0 {
		return &errs.InsufficientStockError{
			ProductID:   productID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   -delta,
		}
	}

	body, err := json.Marshal(map[string]int{"stock": newStock})
	if err != nil {
		return &errs.UpstreamError{Service: "product", Err: err}
	}

	url := fmt.Sprintf("%s/api/v1/products/%d/stock", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return &errs.UpstreamError{Service: "product", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &errs.UpstreamError{Service: "product", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errs.UpstreamError{
			Service: "product",
			Err:     fmt.Errorf("stock update returned status %d", resp.StatusCode),
		}
	}
	return nil
}
