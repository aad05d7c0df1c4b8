package cart

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/safar/storefront/internal/discount"
	"go.uber.org/zap"
)

// Container owns one cart. Dispatches are serialized, and every state that
// differs from its predecessor is handed to the storage.
type Container struct {
	mu      sync.Mutex
	state   State
	storage Storage
	policy  SignOutPolicy
	logger  *zap.Logger
}

// NewContainer rehydrates the cart from storage and immediately drops any
// discount that expired while the cart was at rest.
func NewContainer(storage Storage, policy SignOutPolicy, clock discount.Clock, logger *zap.Logger) (*Container, error) {
	state, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	c := &Container{
		state:   state,
		storage: storage,
		policy:  policy,
		logger:  logger.Named("cart"),
	}

	now := clock.Now().Unix()
	c.update(func(lines []Line) ([]Line, bool) { return Reconcile(lines, now) })
	return c, nil
}

// State returns a copy of the current state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Dispatch applies a and returns the committed state. A storage failure is
// logged; the in-memory transition still stands.
func (c *Container) Dispatch(a Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := Reduce(c.state, a, c.policy)
	if reflect.DeepEqual(next, c.state) {
		return next.clone()
	}
	c.state = next

	if err := c.storage.Save(next); err != nil {
		c.logger.Error("persist cart", zap.Error(err))
	}
	return next.clone()
}

// update runs fn against the current lines under the container lock and
// commits its result as SetItems when fn reports a change. It keeps a
// reconciliation pass from overwriting a concurrent dispatch.
func (c *Container) update(fn func([]Line) ([]Line, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, changed := fn(c.state.Lines)
	if !changed {
		return false
	}
	c.state = Reduce(c.state, SetItems{Lines: lines}, c.policy)
	if err := c.storage.Save(c.state); err != nil {
		c.logger.Error("persist cart", zap.Error(err))
	}
	return true
}
