package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// CatalogProduct is the subset of a catalog entry the cart needs.
type CatalogProduct struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	OriginalPrice   int64  `json:"original_price"`
	DiscountedPrice int64  `json:"discounted_price"`
}

type PriceOption string

const (
	PriceDiscounted PriceOption = "discounted"
	PriceOriginal   PriceOption = "original"
)

// Ref turns a catalog entry into the product reference handed to AddItem,
// using the price the buyer picked.
func (p CatalogProduct) Ref(opt PriceOption) Product {
	price := p.DiscountedPrice
	if opt == PriceOriginal {
		price = p.OriginalPrice
	}
	return Product{ID: p.ID, Title: p.Title, Price: price}
}

var (
	ErrCatalogNotFound    = errors.New("catalog product not found")
	ErrCatalogBadStatus   = errors.New("catalog bad status")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// ProductSource resolves product ids for purchase actions.
type ProductSource interface {
	GetProduct(ctx context.Context, id int) (CatalogProduct, error)
}

const (
	catalogTimeout  = 3 * time.Second
	catalogCacheLen = 256
	catalogCacheTTL = 30 * time.Second
)

type CatalogClient struct {
	BaseURL string
	Client  *http.Client

	breaker *gobreaker.CircuitBreaker[CatalogProduct]
	cache   *expirable.LRU[int, CatalogProduct]
}

func NewCatalogClient(baseURL string, log *zap.Logger) *CatalogClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &CatalogClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: catalogTimeout},
		breaker: gobreaker.NewCircuitBreaker[CatalogProduct](gobreaker.Settings{
			Name:        "catalog",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// A missing product is an answer, not an outage.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrCatalogNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		cache: expirable.NewLRU[int, CatalogProduct](catalogCacheLen, nil, catalogCacheTTL),
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, id int) (CatalogProduct, error) {
	if p, ok := c.cache.Get(id); ok {
		return p, nil
	}

	p, err := c.breaker.Execute(func() (CatalogProduct, error) {
		return c.fetch(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CatalogProduct{}, ErrCatalogUnavailable
	}
	if err != nil {
		return CatalogProduct{}, err
	}

	c.cache.Add(id, p)
	return p, nil
}

func (c *CatalogClient) fetch(ctx context.Context, id int) (CatalogProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/products/"+strconv.Itoa(id), nil)
	if err != nil {
		return CatalogProduct{}, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return CatalogProduct{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return CatalogProduct{}, ErrCatalogNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return CatalogProduct{}, fmt.Errorf("%w: status=%d", ErrCatalogBadStatus, resp.StatusCode)
	}

	var p CatalogProduct
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return CatalogProduct{}, fmt.Errorf("%w: decode: %v", ErrCatalogBadStatus, err)
	}
	return p, nil
}
