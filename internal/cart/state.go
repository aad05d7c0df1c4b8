package cart

import (
	"slices"

	"github.com/safar/storefront/internal/models"
)

// UserInfo is the signed-in user snapshot kept next to the cart.
type UserInfo struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Token   string `json:"token"`
}

type State struct {
	Lines           []Line
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	User            *UserInfo
}

func (s State) Line(itemID int64) (Line, bool) {
	i := slices.IndexFunc(s.Lines, func(l Line) bool { return l.ItemID == itemID })
	if i < 0 {
		return Line{}, false
	}
	return s.Lines[i], true
}

func (s State) clone() State {
	out := s
	out.Lines = slices.Clone(s.Lines)
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}

// SignOutPolicy selects what a sign-out discards besides the user snapshot.
type SignOutPolicy int

const (
	// ClearEverything drops the user, the cart lines, and the checkout data.
	ClearEverything SignOutPolicy = iota
	// ClearCheckoutOnly keeps the cart lines for the next session.
	ClearCheckoutOnly
)

// Action is one cart transition. The set is closed.
type Action interface {
	isAction()
}

// AddItem inserts the line, or replaces the existing line for the same item.
type AddItem struct{ Line Line }

type RemoveItem struct{ ItemID int64 }

// SetItems replaces every line at once, in the given order.
type SetItems struct{ Lines []Line }

type Clear struct{}

type SignIn struct{ User UserInfo }

type SignOut struct{}

type SaveShippingAddress struct{ Address models.ShippingAddress }

type SavePaymentMethod struct{ Method string }

func (AddItem) isAction()             {}
func (RemoveItem) isAction()          {}
func (SetItems) isAction()            {}
func (Clear) isAction()               {}
func (SignIn) isAction()              {}
func (SignOut) isAction()             {}
func (SaveShippingAddress) isAction() {}
func (SavePaymentMethod) isAction()   {}

// Reduce returns the state that results from applying a to s. It never
// mutates s and never fails: unknown actions and removals of absent items
// return an equal state.
func Reduce(s State, a Action, policy SignOutPolicy) State {
	next := s.clone()

	switch a := a.(type) {
	case AddItem:
		i := slices.IndexFunc(next.Lines, func(l Line) bool { return l.ItemID == a.Line.ItemID })
		if i >= 0 {
			next.Lines[i] = a.Line
		} else {
			next.Lines = append(next.Lines, a.Line)
		}
	case RemoveItem:
		next.Lines = slices.DeleteFunc(next.Lines, func(l Line) bool { return l.ItemID == a.ItemID })
	case SetItems:
		next.Lines = slices.Clone(a.Lines)
	case Clear:
		next.Lines = nil
	case SignIn:
		if next.User != nil && next.User.ID != a.User.ID {
			next.ShippingAddress = models.ShippingAddress{}
			next.PaymentMethod = ""
		}
		u := a.User
		next.User = &u
	case SignOut:
		next.User = nil
		next.ShippingAddress = models.ShippingAddress{}
		next.PaymentMethod = ""
		if policy == ClearEverything {
			next.Lines = nil
		}
	case SaveShippingAddress:
		next.ShippingAddress = a.Address
	case SavePaymentMethod:
		next.PaymentMethod = a.Method
	}

	return next
}
