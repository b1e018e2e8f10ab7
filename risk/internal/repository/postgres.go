package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/self-labs/hass-stack/risk/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// UpsertPosition inserts or replaces a position keyed by symbol
func (r *PostgresRepository) UpsertPosition(ctx context.Context, p *models.Position) error {
	query := `
		INSERT INTO positions (symbol, direction, quantity, entry_price, current_price, unrealized_pnl, sector, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			direction = EXCLUDED.direction,
			quantity = EXCLUDED.quantity,
			entry_price = EXCLUDED.entry_price,
			current_price = EXCLUDED.current_price,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			sector = EXCLUDED.sector,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		p.Symbol, p.Direction, p.Quantity, p.EntryPrice,
		p.CurrentPrice, p.UnrealizedPnL, p.Sector, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	return nil
}

// GetPosition retrieves a position by symbol
func (r *PostgresRepository) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	query := `
		SELECT symbol, direction, quantity, entry_price, current_price, unrealized_pnl, sector, updated_at
		FROM positions
		WHERE symbol = $1
	`

	p := &models.Position{}
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&p.Symbol, &p.Direction, &p.Quantity, &p.EntryPrice,
		&p.CurrentPrice, &p.UnrealizedPnL, &p.Sector, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return p, nil
}

// ListPositions retrieves all open positions
func (r *PostgresRepository) ListPositions(ctx context.Context) ([]*models.Position, error) {
	query := `
		SELECT symbol, direction, quantity, entry_price, current_price, unrealized_pnl, sector, updated_at
		FROM positions
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	positions := []*models.Position{}
	for rows.Next() {
		p := &models.Position{}
		if err := rows.Scan(
			&p.Symbol, &p.Direction, &p.Quantity, &p.EntryPrice,
			&p.CurrentPrice, &p.UnrealizedPnL, &p.Sector, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return positions, nil
}

// DeletePosition removes a closed position
func (r *PostgresRepository) DeletePosition(ctx context.Context, symbol string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM positions WHERE symbol = $1", symbol)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPositionNotFound
	}

	return nil
}

// RecordVerdict stores a validation decision for audit
func (r *PostgresRepository) RecordVerdict(ctx context.Context, v *models.Verdict) error {
	query := `
		INSERT INTO verdicts (id, signal_id, symbol, direction, approved, position_size, risk_level, failed_checks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.SignalID, v.Symbol, v.Direction, v.Approved,
		v.PositionSize, v.RiskLevel, v.FailedChecks, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record verdict: %w", err)
	}

	return nil
}

// ListVerdicts retrieves recent verdicts, optionally filtered by symbol
func (r *PostgresRepository) ListVerdicts(ctx context.Context, symbol string, limit int) ([]*models.Verdict, error) {
	whereClause := ""
	args := []interface{}{}
	argPos := 1

	if symbol != "" {
		whereClause = fmt.Sprintf("WHERE symbol = $%d", argPos)
		args = append(args, symbol)
		argPos++
	}

	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, signal_id, symbol, direction, approved, position_size, risk_level, failed_checks, created_at
		FROM verdicts
		%s
		ORDER BY created_at DESC
		LIMIT $%d
	`, whereClause, argPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []*models.Verdict{}
	for rows.Next() {
		v := &models.Verdict{}
		if err := rows.Scan(
			&v.ID, &v.SignalID, &v.Symbol, &v.Direction, &v.Approved,
			&v.PositionSize, &v.RiskLevel, &v.FailedChecks, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		verdicts = append(verdicts, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return verdicts, nil
}

// SaveSnapshot records a point-in-time portfolio valuation
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, s *models.PortfolioState) error {
	query := `
		INSERT INTO portfolio_snapshots (total_value, cash, margin_used, margin_available, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		s.TotalValue, s.Cash, s.MarginUsed, s.MarginAvailable, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// LatestSnapshot reconstructs the most recent portfolio state, with the
// current position set attached
func (r *PostgresRepository) LatestSnapshot(ctx context.Context) (*models.PortfolioState, error) {
	query := `
		SELECT total_value, cash, margin_used, margin_available
		FROM portfolio_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`

	s := &models.PortfolioState{Positions: map[string]models.Position{}}
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.TotalValue, &s.Cash, &s.MarginUsed, &s.MarginAvailable,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	positions, err := r.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		s.Positions[p.Symbol] = *p
	}

	return s, nil
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
