// repository/rental/rentalRepository.go
package rental

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"equiprental/model"
	"equiprental/util/database"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("rental: not found")
	ErrConflict       = errors.New("rental: concurrent modification")
	ErrDuplicateOrder = errors.New("rental: duplicate order id")
)

//go:embed schema.sql
var schema string

// Tx is the read-modify-write view of one optimistic transaction. Writes are
// fenced by the Version the record was read with.
type Tx interface {
	GetRental(ctx context.Context, id string) (*model.RentalRecord, error)
	PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error)
	UpdateRental(ctx context.Context, r *model.RentalRecord) error
	InsertPayment(ctx context.Context, p *model.PaymentRecord) error
}

type Repo interface {
	// RunInTx commits everything fn wrote, or nothing. A stale read surfaces
	// as ErrConflict.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Snapshot reads
	GetRental(ctx context.Context, id string) (*model.RentalRecord, error)
	PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error)
	ListPayments(ctx context.Context, rentalID string) ([]model.PaymentRecord, error)
	FindLatestOverdueByItem(ctx context.Context, itemID string, now time.Time) (*model.RentalRecord, error)
	ItemType(ctx context.Context, itemTypeID string) (*model.ItemTypeInfo, error)

	// MarkOverdue persists Rented -> OverDue for every record due before now.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type repo struct {
	db *database.DB
}

func New(db *database.DB) Repo { return &repo{db: db} }

// EnsureSchema creates the rental tables when they are missing.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	_, err := db.Pool.Exec(ctx, schema)
	return err
}

const rentalCols = `
	id::text, status, start_time, end_time, return_time, rental_time,
	user_id, rental_item_id, item_type_id, rental_station_id,
	COALESCE(return_station_id, ''), version`

const paymentCols = `
	id::text, type, total_amount, payment_date, order_id, payment_key, rental_history_id::text`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanRental(row pgx.Row) (*model.RentalRecord, error) {
	var r model.RentalRecord
	err := row.Scan(
		&r.ID, &r.Status, &r.StartTime, &r.EndTime, &r.ReturnTime, &r.RentalTimeHours,
		&r.UserID, &r.RentalItemID, &r.ItemTypeID, &r.RentalStationID,
		&r.ReturnStationID, &r.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var p model.PaymentRecord
	err := row.Scan(&p.ID, &p.Type, &p.TotalAmount, &p.PaymentDate, &p.OrderID, &p.PaymentKey, &p.RentalHistoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// rentalKey canonicalizes a rental id so lookups compare uuid to uuid and
// stay on the primary key index. A malformed id cannot name a row.
func rentalKey(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrNotFound
	}
	return u.String(), nil
}

func getRental(ctx context.Context, q querier, id string, lock bool) (*model.RentalRecord, error) {
	key, err := rentalKey(id)
	if err != nil {
		return nil, err
	}
	sql := `SELECT` + rentalCols + `
		FROM rental_history
		WHERE id = $1::uuid`
	if lock {
		// Still fenced by version on write; the row lock only shortens the
		// window in which a competing writer can slip in.
		sql += ` FOR UPDATE`
	}
	return scanRental(q.QueryRow(ctx, sql, key))
}

func paymentByOrderID(ctx context.Context, q querier, orderID string) (*model.PaymentRecord, error) {
	const sql = `
		SELECT` + paymentCols + `
		FROM rental_payments
		WHERE order_id = $1`
	return scanPayment(q.QueryRow(ctx, sql, orderID))
}

// classify maps Postgres failures onto repository errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrDuplicateOrder
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return ErrConflict
		}
	}
	return err
}

func (r *repo) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetRental(ctx context.Context, id string) (*model.RentalRecord, error) {
	return getRental(ctx, t.tx, id, true)
}

func (t *pgTx) PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error) {
	return paymentByOrderID(ctx, t.tx, orderID)
}

func (t *pgTx) UpdateRental(ctx context.Context, rec *model.RentalRecord) error {
	key, err := rentalKey(rec.ID)
	if err != nil {
		return err
	}
	const q = `
		UPDATE rental_history
		SET status = $3,
			end_time = $4,
			return_time = $5,
			rental_time = $6,
			return_station_id = NULLIF($7, ''),
			version = version + 1
		WHERE id = $1::uuid
		AND version = $2`
	tag, err := t.tx.Exec(ctx, q,
		key, rec.Version, rec.Status, rec.EndTime, rec.ReturnTime,
		rec.RentalTimeHours, rec.ReturnStationID,
	)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	rec.Version++
	return nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *model.PaymentRecord) error {
	const q = `
		INSERT INTO rental_payments (type, total_amount, payment_date, order_id, payment_key, rental_history_id)
		VALUES ($1, $2, $3, $4, $5, $6::uuid)
		RETURNING id::text`
	err := t.tx.QueryRow(ctx, q,
		p.Type, p.TotalAmount, p.PaymentDate, p.OrderID, p.PaymentKey, p.RentalHistoryID,
	).Scan(&p.ID)
	if err != nil {
		return classify(err)
	}
	return nil
}

// Snapshot reads

func (r *repo) GetRental(ctx context.Context, id string) (*model.RentalRecord, error) {
	return getRental(ctx, r.db.Pool, id, false)
}

func (r *repo) PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error) {
	return paymentByOrderID(ctx, r.db.Pool, orderID)
}

func (r *repo) ListPayments(ctx context.Context, rentalID string) ([]model.PaymentRecord, error) {
	key, err := rentalKey(rentalID)
	if err != nil {
		return nil, nil
	}
	const q = `
		SELECT` + paymentCols + `
		FROM rental_payments
		WHERE rental_history_id = $1::uuid
		ORDER BY payment_date, id`
	rows, err := r.db.Pool.Query(ctx, q, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *repo) FindLatestOverdueByItem(ctx context.Context, itemID string, now time.Time) (*model.RentalRecord, error) {
	// Rented rows past their due time are overdue even if no sweep has
	// persisted the status yet.
	const q = `
		SELECT` + rentalCols + `
		FROM rental_history
		WHERE rental_item_id = $1
		AND (status = 'OverDue' OR (status = 'Rented' AND end_time < $2))
		ORDER BY start_time DESC
		LIMIT 1`
	return scanRental(r.db.Pool.QueryRow(ctx, q, itemID, now))
}

func (r *repo) ItemType(ctx context.Context, itemTypeID string) (*model.ItemTypeInfo, error) {
	const q = `
		SELECT id, name, price
		FROM rental_item_types
		WHERE id = $1`
	var it model.ItemTypeInfo
	err := r.db.Pool.QueryRow(ctx, q, itemTypeID).Scan(&it.ID, &it.Name, &it.PricePerHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("item type %s: %w", itemTypeID, err)
	}
	return &it, nil
}

func (r *repo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `
		UPDATE rental_history
		SET status = 'OverDue',
			version = version + 1
		WHERE status = 'Rented'
		AND end_time < $1`
	tag, err := r.db.Pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
