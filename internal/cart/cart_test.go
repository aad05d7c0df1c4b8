package cart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Unix(1_700_000_000, 0)

func testLine(id int64, price int64, qty int) Line {
	return Line{
		ItemID:       id,
		Name:         "Item",
		Slug:         "item",
		Price:        decimal.NewFromInt(price),
		CountInStock: 100,
		Quantity:     qty,
	}
}

func ids(lines []Line) []int64 {
	out := make([]int64, len(lines))
	for i, l := range lines {
		out[i] = l.ItemID
	}
	return out
}

func TestReduceAddReplacesInPlace(t *testing.T) {
	s := Reduce(State{}, AddItem{Line: testLine(1, 10, 1)}, ClearEverything)
	s = Reduce(s, AddItem{Line: testLine(2, 10, 1)}, ClearEverything)
	s = Reduce(s, AddItem{Line: testLine(1, 10, 5)}, ClearEverything)

	assert.Equal(t, []int64{1, 2}, ids(s.Lines))
	assert.Equal(t, 5, s.Lines[0].Quantity)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := State{Lines: []Line{testLine(1, 10, 1), testLine(2, 10, 1)}}

	after := Reduce(before, RemoveItem{ItemID: 1}, ClearEverything)
	after = Reduce(after, AddItem{Line: testLine(2, 10, 9)}, ClearEverything)

	assert.Equal(t, []int64{1, 2}, ids(before.Lines))
	assert.Equal(t, 1, before.Lines[1].Quantity)
	assert.Equal(t, []int64{2}, ids(after.Lines))
}

func TestReduceRemoveAbsentIsNoop(t *testing.T) {
	s := State{Lines: []Line{testLine(1, 10, 1)}}
	assert.Equal(t, s, Reduce(s, RemoveItem{ItemID: 42}, ClearEverything))
}

func TestReduceSignOut(t *testing.T) {
	s := State{
		Lines:           []Line{testLine(1, 10, 1)},
		ShippingAddress: models.ShippingAddress{City: "Hanoi"},
		PaymentMethod:   "PayPal",
		User:            &UserInfo{ID: 7, Email: "a@b.c"},
	}

	everything := Reduce(s, SignOut{}, ClearEverything)
	assert.Nil(t, everything.User)
	assert.Empty(t, everything.Lines)
	assert.Empty(t, everything.PaymentMethod)
	assert.Empty(t, everything.ShippingAddress.City)

	checkoutOnly := Reduce(s, SignOut{}, ClearCheckoutOnly)
	assert.Nil(t, checkoutOnly.User)
	assert.Len(t, checkoutOnly.Lines, 1)
	assert.Empty(t, checkoutOnly.PaymentMethod)
}

func TestReduceCheckoutDetails(t *testing.T) {
	s := Reduce(State{}, SignIn{User: UserInfo{ID: 1, Name: "Ann"}}, ClearEverything)
	s = Reduce(s, SaveShippingAddress{Address: models.ShippingAddress{Country: "VN"}}, ClearEverything)
	s = Reduce(s, SavePaymentMethod{Method: "Stripe"}, ClearEverything)

	require.NotNil(t, s.User)
	assert.Equal(t, "Ann", s.User.Name)
	assert.Equal(t, "VN", s.ShippingAddress.Country)
	assert.Equal(t, "Stripe", s.PaymentMethod)
}

func TestReduceSignInAsAnotherUser(t *testing.T) {
	s := Reduce(State{}, SignIn{User: UserInfo{ID: 1, Name: "Ann"}}, ClearEverything)
	s = Reduce(s, AddItem{Line: testLine(1, 10, 1)}, ClearEverything)
	s = Reduce(s, SaveShippingAddress{Address: models.ShippingAddress{City: "A-city"}}, ClearEverything)
	s = Reduce(s, SavePaymentMethod{Method: "PayPal"}, ClearEverything)

	same := Reduce(s, SignIn{User: UserInfo{ID: 1, Name: "Ann Lee", Token: "fresh"}}, ClearEverything)
	assert.Equal(t, "A-city", same.ShippingAddress.City)
	assert.Equal(t, "PayPal", same.PaymentMethod)
	assert.Equal(t, "Ann Lee", same.User.Name)

	other := Reduce(s, SignIn{User: UserInfo{ID: 2, Name: "Bob"}}, ClearEverything)
	require.NotNil(t, other.User)
	assert.Equal(t, int64(2), other.User.ID)
	assert.Empty(t, other.ShippingAddress.City)
	assert.Empty(t, other.PaymentMethod)
	assert.Len(t, other.Lines, 1)

	guest := Reduce(State{ShippingAddress: models.ShippingAddress{City: "B-city"}}, SignIn{User: UserInfo{ID: 3}}, ClearEverything)
	assert.Equal(t, "B-city", guest.ShippingAddress.City)
}

func TestReconcile(t *testing.T) {
	now := epoch.Unix()
	expired := testLine(1, 10, 1)
	expired.DiscountPercent, expired.DiscountExpiry = 20, now
	active := testLine(2, 10, 1)
	active.DiscountPercent, active.DiscountExpiry = 30, now+60
	plain := testLine(3, 10, 1)

	in := []Line{expired, active, plain}
	out, changed := Reconcile(in, now)
	require.True(t, changed)
	assert.Equal(t, 0, out[0].DiscountPercent)
	assert.Equal(t, int64(0), out[0].DiscountExpiry)
	assert.Equal(t, 30, out[1].DiscountPercent)
	assert.Equal(t, 20, in[0].DiscountPercent)

	_, changed = Reconcile(out, now)
	assert.False(t, changed)
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	fs := NewFileStorage(path)

	empty, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, empty.Lines)

	want := State{
		Lines:           []Line{testLine(1, 25, 2)},
		ShippingAddress: models.ShippingAddress{FullName: "Ann", City: "Hanoi"},
		PaymentMethod:   "PayPal",
		User:            &UserInfo{ID: 3, Token: "t"},
	}
	require.NoError(t, fs.Save(want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{`"cartItems"`, `"shippingAddress"`, `"paymentMethod"`, `"userInfo"`} {
		assert.Contains(t, string(data), key)
	}

	got, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Price.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "Hanoi", got.ShippingAddress.City)
	assert.Equal(t, "PayPal", got.PaymentMethod)
	require.NotNil(t, got.User)
	assert.Equal(t, int64(3), got.User.ID)
}

func TestFileStorageMalformedDiscount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	raw := `{"cartItems":[
		{"item_id":1,"price":"10","quantity":1,"discount":"abc","discount_expiry":1},
		{"item_id":2,"price":"10","quantity":1},
		{"item_id":3,"price":"10","quantity":1,"discount":"15","discount_expiry":"99999999999"}
	],"userInfo":null}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	s, err := NewFileStorage(path).Load()
	require.NoError(t, err)
	require.Len(t, s.Lines, 3)
	assert.Equal(t, 0, s.Lines[0].DiscountPercent)
	assert.Equal(t, 0, s.Lines[1].DiscountPercent)
	assert.Equal(t, 15, s.Lines[2].DiscountPercent)
	assert.Equal(t, int64(99999999999), s.Lines[2].DiscountExpiry)
	assert.Nil(t, s.User)
}

func TestNewContainerReconcilesOnLoad(t *testing.T) {
	clock := discount.NewFakeClock(epoch)
	stale := testLine(1, 100, 1)
	stale.DiscountPercent, stale.DiscountExpiry = 50, epoch.Add(-time.Minute).Unix()

	storage := &MemoryStorage{}
	require.NoError(t, storage.Save(State{Lines: []Line{stale}}))

	c, err := NewContainer(storage, ClearEverything, clock, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, c.State().Lines[0].DiscountPercent)
	persisted, _ := storage.Load()
	assert.Equal(t, 0, persisted.Lines[0].DiscountPercent)
}

func TestReconcilerPassOnlyCommitsOnChange(t *testing.T) {
	clock := discount.NewFakeClock(epoch)
	storage := &MemoryStorage{}
	c, err := NewContainer(storage, ClearEverything, clock, zap.NewNop())
	require.NoError(t, err)

	line := testLine(1, 100, 1)
	line.DiscountPercent, line.DiscountExpiry = 10, discount.ComputeExpiry(clock.Now(), 0, 0, 1)
	c.Dispatch(AddItem{Line: line})
	saves := storage.Saves()

	r := NewReconciler(c, clock, time.Second, zap.NewNop())
	assert.False(t, r.Pass())
	assert.Equal(t, saves, storage.Saves())

	clock.Advance(time.Minute)
	assert.True(t, r.Pass())
	assert.Equal(t, saves+1, storage.Saves())
	assert.Equal(t, 0, c.State().Lines[0].DiscountPercent)

	assert.False(t, r.Pass())
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	clock := discount.NewFakeClock(epoch)
	c, err := NewContainer(&MemoryStorage{}, ClearEverything, clock, zap.NewNop())
	require.NoError(t, err)

	line := testLine(1, 100, 1)
	line.DiscountPercent, line.DiscountExpiry = 10, epoch.Add(time.Second).Unix()
	c.Dispatch(AddItem{Line: line})
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewReconciler(c, clock, 5*time.Millisecond, zap.NewNop()).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return c.State().Lines[0].DiscountPercent == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestDispatchSkipsUnchangedState(t *testing.T) {
	storage := &MemoryStorage{}
	c, err := NewContainer(storage, ClearEverything, discount.NewFakeClock(epoch), zap.NewNop())
	require.NoError(t, err)

	c.Dispatch(RemoveItem{ItemID: 1})
	c.Dispatch(Clear{})
	assert.Equal(t, 0, storage.Saves())

	c.Dispatch(AddItem{Line: testLine(1, 10, 1)})
	assert.Equal(t, 1, storage.Saves())
}

type fakeCatalog struct {
	items map[int64]*models.Item
}

func (f *fakeCatalog) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, database.ErrItemNotFound
	}
	return item, nil
}

func TestAddToCart(t *testing.T) {
	c, err := NewContainer(&MemoryStorage{}, ClearEverything, discount.NewFakeClock(epoch), zap.NewNop())
	require.NoError(t, err)
	catalog := &fakeCatalog{items: map[int64]*models.Item{
		1: {ID: 1, Name: "Shirt", CountInStock: 3},
	}}
	ctx := context.Background()

	s, err := AddToCart(ctx, c, catalog, testLine(1, 10, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Lines[0].Quantity)
	assert.Equal(t, 3, s.Lines[0].CountInStock)

	_, err = AddToCart(ctx, c, catalog, testLine(1, 10, 5))
	var stockErr *database.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 2, c.State().Lines[0].Quantity)

	_, err = AddToCart(ctx, c, catalog, testLine(9, 10, 1))
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.EqualError(t, err, "check stock: product not found")

	_, err = AddToCart(ctx, c, catalog, testLine(1, 10, 0))
	assert.ErrorIs(t, err, database.ErrInvalidQuantity)
}

type fakePlacer struct {
	err error
	got CheckoutRequest
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: 1}, nil
}

func TestCheckout(t *testing.T) {
	c, err := NewContainer(&MemoryStorage{}, ClearEverything, discount.NewFakeClock(epoch), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = Checkout(ctx, c, &fakePlacer{})
	assert.ErrorIs(t, err, database.ErrEmptyOrder)

	c.Dispatch(AddItem{Line: testLine(1, 10, 2)})
	c.Dispatch(SavePaymentMethod{Method: "PayPal"})

	failing := &fakePlacer{err: &database.InsufficientStockError{ItemID: 1, Requested: 2}}
	_, err = Checkout(ctx, c, failing)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.True(t, strings.HasPrefix(err.Error(), "place order: "), err.Error())
	assert.Len(t, c.State().Lines, 1)

	placer := &fakePlacer{}
	order, err := Checkout(ctx, c, placer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, "PayPal", placer.got.PaymentMethod)
	assert.Len(t, placer.got.Items, 1)
	assert.Empty(t, c.State().Lines)
	assert.Equal(t, "PayPal", c.State().PaymentMethod)
}

func TestTotals(t *testing.T) {
	discounted := testLine(1, 100, 2)
	discounted.DiscountPercent = 10
	s := State{Lines: []Line{discounted, testLine(2, 50, 3)}}

	totals := Totals(s, pricing.DefaultPolicy())
	assert.True(t, totals.ItemsPrice.Equal(decimal.NewFromInt(330)))
	assert.True(t, totals.TotalPrice.Equal(decimal.RequireFromString("379.5")))
	assert.Equal(t, 5, ItemCount(s))
}
