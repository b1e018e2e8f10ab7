// Package broker defines the order placement seam. The paper broker is
// the only implementation; a live adapter would plug in behind the same
// interface.
package broker

import (
	"context"
	"errors"

	"github.com/self-labs/hass-stack/execution/internal/models"
)

var (
	ErrOrderRejected = errors.New("order rejected")
	ErrOrderNotFound = errors.New("order not found")
)

// Broker places and manages orders at a venue.
type Broker interface {
	// Place submits an order and returns the fills it produced so far.
	// Partial fills leave the order active at the broker.
	Place(ctx context.Context, order models.Order) ([]models.Fill, error)

	// Status returns the current state of a submitted order.
	Status(ctx context.Context, orderID string) (models.OrderUpdate, error)

	// Cancel cancels an active order.
	Cancel(ctx context.Context, orderID string) error
}
