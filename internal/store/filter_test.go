package store

import (
	"math"
	"testing"

	"github.com/safar/storefront/internal/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceRange(t *testing.T) {
	lo, hi, err := ParsePriceRange("1-50")
	require.NoError(t, err)
	assert.True(t, lo.Equal(decimal.NewFromInt(1)))
	assert.True(t, hi.Equal(decimal.NewFromInt(50)))

	lo, hi, err = ParsePriceRange("all")
	require.NoError(t, err)
	assert.Nil(t, lo)
	assert.Nil(t, hi)

	for _, bad := range []string{"50", "a-b", "50-1"} {
		_, _, err = ParsePriceRange(bad)
		assert.ErrorIs(t, err, database.ErrInvalidInput, bad)
	}
}

func TestParseRating(t *testing.T) {
	r, err := ParseRating("4")
	require.NoError(t, err)
	assert.Equal(t, 4.0, *r)

	r, err = ParseRating("all")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = ParseRating("four")
	assert.ErrorIs(t, err, database.ErrInvalidInput)
}

func TestItemFilterWhere(t *testing.T) {
	lo, hi := decimal.NewFromInt(1), decimal.NewFromInt(50)
	rating := 4.0

	where, args := ItemFilter{
		Query:     "50%_off",
		Category:  "Shirts",
		MinPrice:  &lo,
		MaxPrice:  &hi,
		MinRating: &rating,
	}.where()

	assert.Equal(t,
		`name ILIKE $1 ESCAPE '\' AND category = $2 AND price >= $3 AND price <= $4 AND rating >= $5`,
		where)
	require.Len(t, args, 5)
	assert.Equal(t, `%50\%\_off%`, args[0])
	assert.Equal(t, "Shirts", args[1])
	assert.Equal(t, 4.0, args[4])
}

func TestItemFilterWhereEmpty(t *testing.T) {
	where, args := ItemFilter{Query: "all", Category: "all"}.where()

	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
}

func TestSortOrder(t *testing.T) {
	assert.Equal(t, SortLowest, ParseSortOrder("lowest"))
	assert.Equal(t, SortDefault, ParseSortOrder("featured"))
	assert.Equal(t, SortDefault, ParseSortOrder("bogus"))

	assert.Equal(t, "price ASC, id DESC", SortLowest.orderBy())
	assert.Equal(t, "price DESC, id DESC", SortHighest.orderBy())
	assert.Equal(t, "rating DESC, id DESC", SortTopRated.orderBy())
	assert.Equal(t, "created_at DESC, id DESC", SortNewest.orderBy())
	assert.Equal(t, "id DESC", SortDefault.orderBy())
}

func TestPagination(t *testing.T) {
	offset, err := Offset(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
	offset, err = Offset(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, offset)
	offset, err = Offset(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	_, err = Offset(1<<62, 3)
	assert.ErrorIs(t, err, database.ErrInvalidInput)
	_, err = Offset(math.MaxInt, 2)
	assert.ErrorIs(t, err, database.ErrInvalidPage)

	assert.Equal(t, 0, TotalPages(0, 3))
	assert.Equal(t, 1, TotalPages(3, 3))
	assert.Equal(t, 4, TotalPages(10, 3))

	page := newOffsetPage[int](nil, 10, 2, 3)
	assert.Equal(t, 4, page.TotalPages)
	assert.NotNil(t, page.Items)
}
