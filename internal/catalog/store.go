package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Product is one website package. Prices are whole rupees.
type Product struct {
	ID              int      `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	OriginalPrice   int64    `json:"original_price" yaml:"original_price"`
	DiscountedPrice int64    `json:"discounted_price" yaml:"discounted_price"`
	Features        []string `json:"features" yaml:"features"`
	Popular         bool     `json:"popular" yaml:"popular"`
}

type Store interface {
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int) (Product, bool, error)
	Ping(ctx context.Context) error
}

//go:embed products.yaml
var seedYAML []byte

var ErrBadSeed = errors.New("bad catalog seed")

// Seed returns the built-in product list.
func Seed() ([]Product, error) {
	return parseSeed(seedYAML)
}

func parseSeed(data []byte) ([]Product, error) {
	var products []Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSeed, err)
	}

	seen := make(map[int]bool, len(products))
	for _, p := range products {
		switch {
		case p.ID <= 0:
			return nil, fmt.Errorf("%w: id %d", ErrBadSeed, p.ID)
		case seen[p.ID]:
			return nil, fmt.Errorf("%w: duplicate id %d", ErrBadSeed, p.ID)
		case p.Title == "":
			return nil, fmt.Errorf("%w: product %d has no title", ErrBadSeed, p.ID)
		case p.OriginalPrice < 0 || p.DiscountedPrice < 0:
			return nil, fmt.Errorf("%w: product %d has a negative price", ErrBadSeed, p.ID)
		}
		seen[p.ID] = true
	}
	return products, nil
}
