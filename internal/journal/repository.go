package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrAttemptNotFound = errors.New("checkout attempt not found")
	ErrAttemptFinished = errors.New("checkout attempt already finished")
)

const (
	EventOrderPlaced            = "order.placed"
	EventReconciliationRequired = "order.reconciliation_required"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CheckoutAttempt is one row of checkout_attempts.
type CheckoutAttempt struct {
	ID            string
	SessionID     string
	OrderID       string
	Status        domain.CheckoutStatus
	FailedStep    string
	FailureReason string
	CartSnapshot  json.RawMessage
	Total         decimal.Decimal
	CustomerEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Outcome is the terminal write for an attempt, with an optional event
// stored in the same transaction.
type Outcome struct {
	AttemptID     string
	OrderID       string
	Status        domain.CheckoutStatus
	FailedStep    string
	FailureReason string
	Event         *OutboxEvent
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	log.Info().Str("host", cred.Host).Str("db", cred.DBName).Msg("connected to postgres")
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) CreateAttempt(ctx context.Context, a *CheckoutAttempt) error {
	query := `INSERT INTO checkout_attempts
		(id, session_id, order_id, status, cart_snapshot, total, customer_email, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.SessionID,
		a.OrderID,
		string(a.Status),
		[]byte(a.CartSnapshot),
		a.Total,
		a.CustomerEmail)
	if err != nil {
		return fmt.Errorf("failed to create checkout attempt: %w", err)
	}
	return nil
}

// UpdateStatus moves a non-terminal attempt forward. An empty orderID keeps
// the stored one. Terminal rows are never rewritten: ErrAttemptFinished.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.CheckoutStatus, orderID string) error {
	query := `UPDATE checkout_attempts
		SET status = $2, order_id = COALESCE(NULLIF($3, ''), order_id), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)`

	result, err := r.db.ExecContext(ctx, query, id, string(status), orderID,
		string(domain.CheckoutStatusDone), string(domain.CheckoutStatusFailed))
	if err != nil {
		return fmt.Errorf("failed to update checkout attempt: %w", err)
	}
	return expectOneRow(ctx, r.db, result, id)
}

// Finish writes the terminal status and its outbox event atomically. An
// attempt that is already terminal is left as is and no event is stored.
func (r *Repository) Finish(ctx context.Context, o Outcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE checkout_attempts
		SET status = $2,
		    order_id = COALESCE(NULLIF($3, ''), order_id),
		    failed_step = NULLIF($4, ''),
		    failure_reason = NULLIF($5, ''),
		    updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($6, $7)`
	result, err := tx.ExecContext(ctx, query, o.AttemptID, string(o.Status), o.OrderID, o.FailedStep, o.FailureReason,
		string(domain.CheckoutStatusDone), string(domain.CheckoutStatusFailed))
	if err != nil {
		return fmt.Errorf("failed to finish checkout attempt: %w", err)
	}
	if err := expectOneRow(ctx, tx, result, o.AttemptID); err != nil {
		return err
	}

	if o.Event != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
			o.Event.AggregateID, o.Event.EventType, []byte(o.Event.Payload))
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

const attemptColumns = `id, session_id, order_id, status, failed_step, failure_reason,
	cart_snapshot, total, customer_email, created_at, updated_at`

func (r *Repository) GetAttempt(ctx context.Context, id string) (*CheckoutAttempt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM checkout_attempts WHERE id = $1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	return a, err
}

// ListPendingReconciliation returns failed attempts whose order was stored,
// oldest first. These orders are pending without stock or confirmation.
func (r *Repository) ListPendingReconciliation(ctx context.Context, limit int) ([]*CheckoutAttempt, error) {
	return r.queryAttempts(ctx, `SELECT `+attemptColumns+` FROM checkout_attempts
		WHERE status = $1 AND order_id IS NOT NULL
		ORDER BY updated_at ASC
		LIMIT $2`, string(domain.CheckoutStatusFailed), limit)
}

// GetStuckAttempts returns non-terminal attempts not updated for olderThan.
func (r *Repository) GetStuckAttempts(ctx context.Context, olderThan time.Duration) ([]*CheckoutAttempt, error) {
	cutoff := time.Now().Add(-olderThan)
	return r.queryAttempts(ctx, `SELECT `+attemptColumns+` FROM checkout_attempts
		WHERE status NOT IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at ASC
		LIMIT 100`, string(domain.CheckoutStatusDone), string(domain.CheckoutStatusFailed), cutoff)
}

func (r *Repository) queryAttempts(ctx context.Context, query string, args ...interface{}) ([]*CheckoutAttempt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*CheckoutAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return attempts, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbox event %d not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(s scanner) (*CheckoutAttempt, error) {
	var (
		a                           CheckoutAttempt
		status                      string
		orderID, failedStep, reason sql.NullString
		email                       sql.NullString
		snapshot                    []byte
	)
	err := s.Scan(&a.ID, &a.SessionID, &orderID, &status, &failedStep, &reason,
		&snapshot, &a.Total, &email, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan checkout attempt: %w", err)
	}
	a.Status = domain.CheckoutStatus(status)
	a.OrderID = orderID.String
	a.FailedStep = failedStep.String
	a.FailureReason = reason.String
	a.CustomerEmail = email.String
	a.CartSnapshot = snapshot
	return &a, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// expectOneRow tells a missing attempt from a terminal one when a guarded
// update touched nothing.
func expectOneRow(ctx context.Context, q rowQueryer, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM checkout_attempts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check checkout attempt: %w", err)
	}
	if exists {
		return ErrAttemptFinished
	}
	return ErrAttemptNotFound
}
