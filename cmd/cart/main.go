// Command cart manages a locally persisted shopping cart against a running
// storefront API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/client"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/logging"
	"github.com/safar/storefront/internal/models"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Usage: cart [flags] <command> [args]

Commands:
  show                      print the cart and its totals
  add <item-id> <qty>       add an item or change its quantity
  remove <item-id>          remove an item
  signin <email> <password> start a session
  signout                   end the session
  profile [flags]           update the signed-in user's profile
  address [flags]           save the shipping address
  payment <method>          save the payment method
  checkout                  place an order for the cart
  watch                     keep clearing expired discounts until interrupted

Flags:
`

type app struct {
	cfg       *config.Config
	container *cart.Container
	api       *client.Client
	clock     discount.Clock
	logger    *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	flags := pflag.NewFlagSet("cart", pflag.ExitOnError)
	flags.StringVar(&cfg.Cart.StoragePath, "file", cfg.Cart.StoragePath, "cart file")
	flags.StringVar(&cfg.Cart.APIBaseURL, "api", cfg.Cart.APIBaseURL, "storefront API base URL")
	flags.StringVar(&cfg.Log.Level, "log-level", "warn", "log level")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.SetInterspersed(false)
	flags.Parse(os.Args[1:])
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()

	policy := cart.ClearEverything
	if !cfg.Cart.SignOutClearsItems {
		policy = cart.ClearCheckoutOnly
	}
	clock := discount.SystemClock{}
	container, err := cart.NewContainer(cart.NewFileStorage(cfg.Cart.StoragePath), policy, clock, logger)
	if err != nil {
		fatal(err)
	}

	a := &app{
		cfg:       cfg,
		container: container,
		api:       client.New(cfg.Cart.APIBaseURL, nil),
		clock:     clock,
		logger:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flags.Arg(0), flags.Args()[1:]); err != nil {
		fatal(err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "show":
		a.print()
		return nil
	case "add":
		if len(args) != 2 {
			return fmt.Errorf("add needs <item-id> <qty>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[0])
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		return a.add(ctx, id, qty)
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("remove needs <item-id>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[0])
		}
		a.container.Dispatch(cart.RemoveItem{ItemID: id})
		a.print()
		return nil
	case "signin":
		if len(args) != 2 {
			return fmt.Errorf("signin needs <email> <password>")
		}
		user, err := a.api.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		a.container.Dispatch(cart.SignIn{User: *user})
		fmt.Printf("signed in as %s\n", user.Email)
		return nil
	case "signout":
		a.container.Dispatch(cart.SignOut{})
		fmt.Println("signed out")
		return nil
	case "profile":
		return a.updateProfile(ctx, args)
	case "address":
		return a.saveAddress(args)
	case "payment":
		if len(args) != 1 {
			return fmt.Errorf("payment needs <method>")
		}
		a.container.Dispatch(cart.SavePaymentMethod{Method: args[0]})
		return nil
	case "checkout":
		return a.checkout(ctx)
	case "watch":
		cart.NewReconciler(a.container, a.clock, a.cfg.Cart.ReconcileInterval, a.logger).Run(ctx)
		a.print()
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) add(ctx context.Context, id int64, qty int) error {
	line, ok := a.container.State().Line(id)
	if !ok {
		item, err := a.api.GetItem(ctx, id)
		if err != nil {
			return err
		}
		line = cart.LineFromItem(*item, qty)
	}
	line.Quantity = qty

	if _, err := cart.AddToCart(ctx, a.container, a.api, line); err != nil {
		return err
	}
	a.print()
	return nil
}

func (a *app) updateProfile(ctx context.Context, args []string) error {
	state := a.container.State()
	if state.User == nil {
		return fmt.Errorf("sign in before updating the profile")
	}

	var update client.ProfileUpdate
	fs := pflag.NewFlagSet("profile", pflag.ContinueOnError)
	fs.StringVar(&update.Name, "name", "", "new name")
	fs.StringVar(&update.Email, "email", "", "new email")
	fs.StringVar(&update.Password, "password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.api.WithToken(state.User.Token).UpdateProfile(ctx, update)
	if err != nil {
		return err
	}
	a.container.Dispatch(cart.SignIn{User: *user})
	fmt.Printf("profile updated for %s\n", user.Email)
	return nil
}

func (a *app) saveAddress(args []string) error {
	var addr models.ShippingAddress
	fs := pflag.NewFlagSet("address", pflag.ContinueOnError)
	fs.StringVar(&addr.FullName, "full-name", "", "recipient name")
	fs.StringVar(&addr.Address, "address", "", "street address")
	fs.StringVar(&addr.City, "city", "", "city")
	fs.StringVar(&addr.PostalCode, "postal-code", "", "postal code")
	fs.StringVar(&addr.Country, "country", "", "country")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a.container.Dispatch(cart.SaveShippingAddress{Address: addr})
	return nil
}

func (a *app) checkout(ctx context.Context) error {
	state := a.container.State()
	if state.User == nil {
		return fmt.Errorf("sign in before checking out")
	}

	order, err := cart.Checkout(ctx, a.container, a.api.WithToken(state.User.Token))
	if err != nil {
		return err
	}
	fmt.Printf("order %s placed, total %s\n", order.OrderNumber, order.TotalPrice.StringFixed(2))
	return nil
}

func (a *app) print() {
	state := a.container.State()
	now := a.clock.Now().Unix()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE\tDISCOUNT\tENDS IN\tTOTAL")
	for _, l := range state.Lines {
		ends := "-"
		if remaining, ok := discount.Remaining(l.DiscountExpiry, now); ok && l.DiscountPercent > 0 {
			ends = remaining.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d%%\t%s\t%s\n",
			l.ItemID, l.Name, l.Quantity, l.Price.StringFixed(2), l.DiscountPercent, ends, l.Total().StringFixed(2))
	}
	w.Flush()

	totals := cart.Totals(state, a.cfg.Checkout.Policy())
	fmt.Printf("\n%d item(s)  items %s  shipping %s  tax %s  total %s\n",
		cart.ItemCount(state),
		totals.ItemsPrice.StringFixed(2),
		totals.ShippingPrice.StringFixed(2),
		totals.TaxPrice.StringFixed(2),
		totals.TotalPrice.StringFixed(2))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "cart: %v\n", err)
	os.Exit(1)
}
