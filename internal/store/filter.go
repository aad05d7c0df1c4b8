package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/shopspring/decimal"
)

// ItemFilter narrows catalog queries. Zero-valued fields do not filter.
type ItemFilter struct {
	Query     string
	Category  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *float64
}

// ParsePriceRange parses "min-max" (both inclusive). "" and "all" mean no
// price filter.
func ParsePriceRange(s string) (*decimal.Decimal, *decimal.Decimal, error) {
	if s == "" || s == "all" {
		return nil, nil, nil
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return nil, nil, fmt.Errorf("%w: price range %q must be min-max", database.ErrInvalidInput, s)
	}
	minPrice, err := decimal.NewFromString(strings.TrimSpace(lo))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: price range %q: %v", database.ErrInvalidInput, s, err)
	}
	maxPrice, err := decimal.NewFromString(strings.TrimSpace(hi))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: price range %q: %v", database.ErrInvalidInput, s, err)
	}
	if maxPrice.LessThan(minPrice) {
		return nil, nil, fmt.Errorf("%w: price range %q is inverted", database.ErrInvalidInput, s)
	}
	return &minPrice, &maxPrice, nil
}

// ParseRating parses a minimum rating; "" and "all" mean no filter.
func ParseRating(s string) (*float64, error) {
	if s == "" || s == "all" {
		return nil, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: rating %q", database.ErrInvalidInput, s)
	}
	return &r, nil
}

// where renders the filter as a SQL predicate with positional arguments.
func (f ItemFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Query != "" && f.Query != "all" {
		conds = append(conds, `name ILIKE `+arg("%"+escapeLike(f.Query)+"%")+` ESCAPE '\'`)
	}
	if f.Category != "" && f.Category != "all" {
		conds = append(conds, "category = "+arg(f.Category))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*f.MaxPrice))
	}
	if f.MinRating != nil {
		conds = append(conds, "rating >= "+arg(*f.MinRating))
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type SortOrder string

const (
	SortDefault  SortOrder = ""
	SortLowest   SortOrder = "lowest"
	SortHighest  SortOrder = "highest"
	SortTopRated SortOrder = "toprated"
	SortNewest   SortOrder = "newest"
)

// ParseSortOrder maps unknown keys (including "featured") to the default
// reverse-id order.
func ParseSortOrder(s string) SortOrder {
	switch o := SortOrder(s); o {
	case SortLowest, SortHighest, SortTopRated, SortNewest:
		return o
	default:
		return SortDefault
	}
}

// orderBy always ends in id DESC so pages are stable under ties.
func (o SortOrder) orderBy() string {
	switch o {
	case SortLowest:
		return "price ASC, id DESC"
	case SortHighest:
		return "price DESC, id DESC"
	case SortTopRated:
		return "rating DESC, id DESC"
	case SortNewest:
		return "created_at DESC, id DESC"
	default:
		return "id DESC"
	}
}
