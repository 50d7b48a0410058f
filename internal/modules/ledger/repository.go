package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultLimit is used when a caller asks for a non-positive number of rows
const DefaultLimit = 50

// liquidationsColumns must match scanLiquidation
const liquidationsColumns = `id, currency, quantity, price, floor, status, error, created_at`

// Repository handles liquidation ledger operations
type Repository struct {
	ledgerDB *sql.DB // ledger.db - liquidations table
	now      func() time.Time
	log      zerolog.Logger
}

// NewRepository creates a new liquidation repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		now:      time.Now,
		log:      log.With().Str("repo", "liquidation").Logger(),
	}
}

// RecordLiquidation implements domain.LiquidationRecorder
func (r *Repository) RecordLiquidation(ctx context.Context, attempt domain.LiquidationAttempt) error {
	currency := strings.ToUpper(strings.TrimSpace(attempt.Currency))
	if currency == "" {
		return fmt.Errorf("failed to record liquidation: currency is required")
	}

	createdAt := attempt.Timestamp
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	status := StatusExecuted
	errMsg := ""
	if !attempt.Succeeded() {
		status = StatusFailed
		errMsg = attempt.Err.Error()
	}

	query := `
		INSERT INTO liquidations
		(id, currency, quantity, price, floor, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	id := uuid.New().String()
	_, err := r.ledgerDB.ExecContext(ctx, query,
		id,
		currency,
		attempt.Quantity,
		attempt.Price,
		attempt.Floor,
		string(status),
		nullString(errMsg),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record liquidation: %w", err)
	}

	r.log.Info().
		Str("id", id).
		Str("currency", currency).
		Str("status", string(status)).
		Msg("Liquidation recorded")

	return nil
}

// GetRecent returns the most recent liquidations, newest first
func (r *Repository) GetRecent(ctx context.Context, limit int) ([]Liquidation, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := "SELECT " + liquidationsColumns + " FROM liquidations ORDER BY created_at DESC, rowid DESC LIMIT ?"
	rows, err := r.ledgerDB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidations: %w", err)
	}
	defer rows.Close()

	liquidations := make([]Liquidation, 0)
	for rows.Next() {
		l, err := scanLiquidation(rows)
		if err != nil {
			return nil, err
		}
		liquidations = append(liquidations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating liquidations: %w", err)
	}

	return liquidations, nil
}

// GetByCurrency returns all liquidations for a currency, newest first
func (r *Repository) GetByCurrency(ctx context.Context, currency string) ([]Liquidation, error) {
	query := "SELECT " + liquidationsColumns + " FROM liquidations WHERE currency = ? ORDER BY created_at DESC, rowid DESC"
	rows, err := r.ledgerDB.QueryContext(ctx, query, strings.ToUpper(strings.TrimSpace(currency)))
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidations for %s: %w", currency, err)
	}
	defer rows.Close()

	liquidations := make([]Liquidation, 0)
	for rows.Next() {
		l, err := scanLiquidation(rows)
		if err != nil {
			return nil, err
		}
		liquidations = append(liquidations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating liquidations: %w", err)
	}

	return liquidations, nil
}

// Summary counts liquidations created at or after since
func (r *Repository) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	summary := &Summary{Since: since, Currencies: []string{}}

	rows, err := r.ledgerDB.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM liquidations
		WHERE created_at >= ?
		GROUP BY status
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to summarize liquidations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan liquidation summary: %w", err)
		}
		switch Status(status) {
		case StatusExecuted:
			summary.Executed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating liquidation summary: %w", err)
	}

	currencyRows, err := r.ledgerDB.QueryContext(ctx, `
		SELECT DISTINCT currency FROM liquidations
		WHERE created_at >= ?
		ORDER BY currency
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list liquidated currencies: %w", err)
	}
	defer currencyRows.Close()

	for currencyRows.Next() {
		var currency string
		if err := currencyRows.Scan(&currency); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		summary.Currencies = append(summary.Currencies, currency)
	}

	return summary, currencyRows.Err()
}

func scanLiquidation(rows *sql.Rows) (Liquidation, error) {
	var l Liquidation
	var status string
	var errMsg sql.NullString
	var createdAt int64

	if err := rows.Scan(&l.ID, &l.Currency, &l.Quantity, &l.Price, &l.Floor, &status, &errMsg, &createdAt); err != nil {
		return Liquidation{}, fmt.Errorf("failed to scan liquidation: %w", err)
	}

	l.Status = Status(status)
	if errMsg.Valid {
		l.Error = errMsg.String
	}
	l.CreatedAt = time.Unix(createdAt, 0).UTC()

	return l, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
