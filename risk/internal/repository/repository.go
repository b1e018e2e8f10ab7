package repository

import (
	"context"
	"errors"

	"github.com/self-labs/hass-stack/risk/internal/models"
)

var (
	ErrPositionNotFound = errors.New("position not found")
)

// Repository persists positions and validation verdicts.
type Repository interface {
	// Position operations
	UpsertPosition(ctx context.Context, p *models.Position) error
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	ListPositions(ctx context.Context) ([]*models.Position, error)
	DeletePosition(ctx context.Context, symbol string) error

	// Verdict audit trail
	RecordVerdict(ctx context.Context, v *models.Verdict) error
	ListVerdicts(ctx context.Context, symbol string, limit int) ([]*models.Verdict, error)

	// Portfolio snapshots
	SaveSnapshot(ctx context.Context, s *models.PortfolioState) error
	LatestSnapshot(ctx context.Context) (*models.PortfolioState, error)

	// Utility
	Close() error
}
