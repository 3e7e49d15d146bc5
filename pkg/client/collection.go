package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/classvsoftware/t3api-utils/pkg/pagination"
)

// Collection query defaults.
const (
	DefaultPageSize    = 100
	DefaultFilterLogic = "and"
)

// CollectionQuery holds the parameters shared by every page of a collection.
type CollectionQuery struct {
	LicenseNumber    string `validate:"required"`
	PageSize         int    `validate:"gte=0,lte=500"`
	Sort             string
	Filters          []string
	FilterLogic      string `validate:"omitempty,oneof=and or"`
	StrictPagination bool

	// Extra parameters passed through unchanged
	Extra url.Values
}

// values renders the query string for one page.
func (q CollectionQuery) values(page int) url.Values {
	v := url.Values{}
	for k, vals := range q.Extra {
		v[k] = append([]string(nil), vals...)
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	filterLogic := q.FilterLogic
	if filterLogic == "" {
		filterLogic = DefaultFilterLogic
	}

	v.Set("licenseNumber", q.LicenseNumber)
	v.Set("page", strconv.Itoa(page))
	v.Set("pageSize", strconv.Itoa(pageSize))
	v.Set("strictPagination", strconv.FormatBool(q.StrictPagination))
	v.Set("filterLogic", filterLogic)
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	for _, f := range q.Filters {
		v.Add("filter", f)
	}
	return v
}

// GetCollection fetches a single page of a collection endpoint.
func (c *Client) GetCollection(ctx context.Context, endpoint string, q CollectionQuery, page int) (*CollectionResponse, error) {
	var resp CollectionResponse
	if err := c.GetData(ctx, endpoint, RequestOptions{Query: q.values(page)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CollectionFetcher returns a page fetcher for endpoint bound to q.
func (c *Client) CollectionFetcher(endpoint string, q CollectionQuery) pagination.FetchFunc[*CollectionResponse] {
	return func(ctx context.Context, page int) (*CollectionResponse, error) {
		return c.GetCollection(ctx, endpoint, q, page)
	}
}

// LoadCollectionPages loads every page of a collection in page order.
// The client's rate limiter is shared with the load unless cfg brings its own.
func (c *Client) LoadCollectionPages(ctx context.Context, endpoint string, q CollectionQuery, cfg pagination.Config) ([]*CollectionResponse, error) {
	if err := validate.Struct(q); err != nil {
		return nil, fmt.Errorf("invalid collection query: %w", err)
	}
	cfg = c.loaderConfig(endpoint, cfg)
	return pagination.NewBatchFetcher(c.CollectionFetcher(endpoint, q), cfg).Load(ctx)
}

// LoadCollection loads every page of a collection and returns the records
// flattened in page order.
func (c *Client) LoadCollection(ctx context.Context, endpoint string, q CollectionQuery, cfg pagination.Config) ([]Record, error) {
	if err := validate.Struct(q); err != nil {
		return nil, fmt.Errorf("invalid collection query: %w", err)
	}
	cfg = c.loaderConfig(endpoint, cfg)
	return pagination.LoadAll[Record](ctx, c.CollectionFetcher(endpoint, q), cfg)
}

func (c *Client) loaderConfig(endpoint string, cfg pagination.Config) pagination.Config {
	if cfg.Limiter == nil && cfg.RateLimit <= 0 && c.limiter.Enabled() {
		cfg.Limiter = c.limiter
	}
	if cfg.Label == "" {
		cfg.Label = endpoint
	}
	return cfg
}

// GetLicenses returns the licenses available to the authenticated user.
func (c *Client) GetLicenses(ctx context.Context) ([]License, error) {
	var licenses []License
	if err := c.GetData(ctx, "/v2/licenses", RequestOptions{}, &licenses); err != nil {
		return nil, err
	}
	return licenses, nil
}
