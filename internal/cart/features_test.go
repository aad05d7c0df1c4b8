package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartTestContext struct {
	clock     *discount.FakeClock
	container *Container
	catalog   *fakeCatalog
	placer    *fakePlacer
	order     *models.Order
	err       error
}

func (c *cartTestContext) reset() error {
	c.clock = discount.NewFakeClock(epoch)
	container, err := NewContainer(&MemoryStorage{}, ClearEverything, c.clock, zap.NewNop())
	if err != nil {
		return err
	}
	c.container = container
	c.catalog = &fakeCatalog{items: map[int64]*models.Item{}}
	c.placer = &fakePlacer{}
	c.order = nil
	c.err = nil
	return nil
}

func (c *cartTestContext) anEmptyCart() error {
	if n := len(c.container.State().Lines); n != 0 {
		return fmt.Errorf("expected empty cart, got %d lines", n)
	}
	return nil
}

func (c *cartTestContext) theCatalogHasItem(id int64, name string, price, stock int) error {
	c.catalog.items[id] = &models.Item{
		ID:           id,
		Name:         name,
		Price:        decimal.NewFromInt(int64(price)),
		CountInStock: stock,
	}
	return nil
}

func (c *cartTestContext) itemCarriesDiscount(id int64, percent, seconds int) error {
	item, ok := c.catalog.items[id]
	if !ok {
		return fmt.Errorf("item %d not in catalog", id)
	}
	item.DiscountPercent = percent
	item.DiscountExpiry = c.clock.Now().Add(time.Duration(seconds) * time.Second).Unix()
	return nil
}

func (c *cartTestContext) iAddItem(id int64, qty int) error {
	item, ok := c.catalog.items[id]
	if !ok {
		return fmt.Errorf("item %d not in catalog", id)
	}
	_, err := AddToCart(context.Background(), c.container, c.catalog, LineFromItem(*item, qty))
	return err
}

func (c *cartTestContext) iTryToAddItem(id int64, qty int) error {
	c.err = c.iAddItem(id, qty)
	return nil
}

func (c *cartTestContext) iRemoveItem(id int64) error {
	c.container.Dispatch(RemoveItem{ItemID: id})
	return nil
}

func (c *cartTestContext) theAddIsRejectedForInsufficientStock() error {
	var stockErr *database.InsufficientStockError
	if !errors.As(c.err, &stockErr) {
		return fmt.Errorf("expected insufficient stock, got %v", c.err)
	}
	return nil
}

func (c *cartTestContext) theCartHasLines(n int) error {
	if got := len(c.container.State().Lines); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theLinesAreOrdered(list string) error {
	var want []string
	for _, s := range strings.Split(list, ",") {
		want = append(want, strings.TrimSpace(s))
	}
	var got []string
	for _, l := range c.container.State().Lines {
		got = append(got, strconv.FormatInt(l.ItemID, 10))
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected order %v, got %v", want, got)
	}
	return nil
}

func (c *cartTestContext) line(id int64) (Line, error) {
	l, ok := c.container.State().Line(id)
	if !ok {
		return Line{}, fmt.Errorf("item %d not in cart", id)
	}
	return l, nil
}

func (c *cartTestContext) itemHasQuantity(id int64, qty int) error {
	l, err := c.line(id)
	if err != nil {
		return err
	}
	if l.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, l.Quantity)
	}
	return nil
}

func (c *cartTestContext) itemHasDiscount(id int64, percent int) error {
	l, err := c.line(id)
	if err != nil {
		return err
	}
	if l.DiscountPercent != percent {
		return fmt.Errorf("expected discount %d, got %d", percent, l.DiscountPercent)
	}
	return nil
}

func (c *cartTestContext) theCartItemsPriceIs(amount string) error {
	want, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	got := Totals(c.container.State(), pricing.DefaultPolicy()).ItemsPrice
	if !got.Equal(want) {
		return fmt.Errorf("expected items price %s, got %s", want, got)
	}
	return nil
}

func (c *cartTestContext) secondsPass(n int) error {
	c.clock.Advance(time.Duration(n) * time.Second)
	return nil
}

func (c *cartTestContext) aReconciliationPassRuns() error {
	NewReconciler(c.container, c.clock, time.Second, zap.NewNop()).Pass()
	return nil
}

func (c *cartTestContext) iAmSignedInAs(email string) error {
	c.container.Dispatch(SignIn{User: UserInfo{ID: 1, Email: email}})
	return nil
}

func (c *cartTestContext) iSignOut() error {
	c.container.Dispatch(SignOut{})
	return nil
}

func (c *cartTestContext) nobodyIsSignedIn() error {
	if u := c.container.State().User; u != nil {
		return fmt.Errorf("expected no user, got %s", u.Email)
	}
	return nil
}

func (c *cartTestContext) theOrderServiceRejectsOrders() error {
	c.placer.err = errors.New("service unavailable")
	return nil
}

func (c *cartTestContext) iCheckOut() error {
	c.order, c.err = Checkout(context.Background(), c.container, c.placer)
	return nil
}

func (c *cartTestContext) theOrderIsPlaced() error {
	if c.err != nil {
		return fmt.Errorf("expected order, got %v", c.err)
	}
	if c.order == nil {
		return errors.New("no order returned")
	}
	return nil
}

func (c *cartTestContext) theCheckoutFails() error {
	if c.err == nil {
		return errors.New("expected checkout to fail")
	}
	return nil
}

func initializeCartScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})

	ctx.Step(`^an empty cart$`, tc.anEmptyCart)
	ctx.Step(`^the catalog has item (\d+) "([^"]*)" priced (\d+) with stock (\d+)$`, tc.theCatalogHasItem)
	ctx.Step(`^item (\d+) carries a (\d+) percent discount expiring in (\d+) seconds$`, tc.itemCarriesDiscount)
	ctx.Step(`^I am signed in as "([^"]*)"$`, tc.iAmSignedInAs)
	ctx.Step(`^the order service rejects orders$`, tc.theOrderServiceRejectsOrders)

	ctx.Step(`^I add item (\d+) with quantity (\d+)$`, tc.iAddItem)
	ctx.Step(`^I try to add item (\d+) with quantity (\d+)$`, tc.iTryToAddItem)
	ctx.Step(`^I remove item (\d+)$`, tc.iRemoveItem)
	ctx.Step(`^(\d+) seconds pass$`, tc.secondsPass)
	ctx.Step(`^a reconciliation pass runs$`, tc.aReconciliationPassRuns)
	ctx.Step(`^I sign out$`, tc.iSignOut)
	ctx.Step(`^I check out$`, tc.iCheckOut)

	ctx.Step(`^the add is rejected for insufficient stock$`, tc.theAddIsRejectedForInsufficientStock)
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^the lines are ordered (.+)$`, tc.theLinesAreOrdered)
	ctx.Step(`^item (\d+) has quantity (\d+)$`, tc.itemHasQuantity)
	ctx.Step(`^item (\d+) has discount (\d+)$`, tc.itemHasDiscount)
	ctx.Step(`^the cart items price is (\d+(?:\.\d+)?)$`, tc.theCartItemsPriceIs)
	ctx.Step(`^nobody is signed in$`, tc.nobodyIsSignedIn)
	ctx.Step(`^the order is placed$`, tc.theOrderIsPlaced)
	ctx.Step(`^the checkout fails$`, tc.theCheckoutFails)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
