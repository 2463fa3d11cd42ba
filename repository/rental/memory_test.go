package rental

import (
	"context"
	"errors"
	"testing"
	"time"

	"equiprental/model"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 11, 2, 12, 0, 0, 0, time.UTC)

func seed(m *Memory, item string, start, end time.Time, st model.RentalStatus) string {
	return m.PutRental(model.RentalRecord{
		Status:          st,
		StartTime:       start,
		EndTime:         end,
		RentalTimeHours: int64(end.Sub(start) / time.Hour),
		UserID:          "u1",
		RentalItemID:    item,
		ItemTypeID:      "umbrella",
		RentalStationID: "st1",
	})
}

func TestRunInTx_CommitsRentalAndPaymentTogether(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := seed(m, "item-1", t0, t0.Add(2*time.Hour), model.RentalRented)

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.GetRental(ctx, id)
		if err != nil {
			return err
		}
		r.EndTime = r.EndTime.Add(time.Hour)
		r.RentalTimeHours++
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &model.PaymentRecord{
			Type: model.PaymentRenewal, TotalAmount: 1000, OrderID: "o-1", RentalHistoryID: id,
		})
	})
	require.NoError(t, err)

	r, err := m.GetRental(ctx, id)
	require.NoError(t, err)
	require.Equal(t, t0.Add(3*time.Hour), r.EndTime)
	require.Equal(t, int64(3), r.RentalTimeHours)
	require.Equal(t, int64(1), r.Version)

	p, err := m.PaymentByOrderID(ctx, "o-1")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, id, p.RentalHistoryID)
}

func TestRunInTx_FnErrorAppliesNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := seed(m, "item-1", t0, t0.Add(2*time.Hour), model.RentalRented)
	boom := errors.New("boom")

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		r, _ := tx.GetRental(ctx, id)
		r.RentalTimeHours = 99
		_ = tx.UpdateRental(ctx, r)
		_ = tx.InsertPayment(ctx, &model.PaymentRecord{OrderID: "o-1", RentalHistoryID: id, TotalAmount: 1})
		return boom
	})
	require.ErrorIs(t, err, boom)

	r, _ := m.GetRental(ctx, id)
	require.Equal(t, int64(2), r.RentalTimeHours)
	_, err = m.PaymentByOrderID(ctx, "o-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRunInTx_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := seed(m, "item-1", t0, t0.Add(2*time.Hour), model.RentalRented)

	interleaved := false
	m.BeforeCommit = func() {
		if interleaved {
			return
		}
		interleaved = true
		// a competing writer commits first
		require.NoError(t, m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			r, _ := tx.GetRental(ctx, id)
			r.RentalTimeHours++
			return tx.UpdateRental(ctx, r)
		}))
	}

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		r, _ := tx.GetRental(ctx, id)
		r.RentalTimeHours += 5
		return tx.UpdateRental(ctx, r)
	})
	require.ErrorIs(t, err, ErrConflict)

	r, _ := m.GetRental(ctx, id)
	require.Equal(t, int64(3), r.RentalTimeHours)
}

func TestRunInTx_DuplicateOrderRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := seed(m, "item-1", t0, t0.Add(time.Hour), model.RentalRented)

	insert := func() error {
		return m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.InsertPayment(ctx, &model.PaymentRecord{OrderID: "same", RentalHistoryID: id, TotalAmount: 10})
		})
	}
	require.NoError(t, insert())
	require.ErrorIs(t, insert(), ErrDuplicateOrder)

	ps, err := m.ListPayments(ctx, id)
	require.NoError(t, err)
	require.Len(t, ps, 1)
}

func TestFindLatestOverdueByItem(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := t0.Add(10 * time.Hour)

	seed(m, "item-1", t0, t0.Add(time.Hour), model.RentalReturned)
	older := seed(m, "item-1", t0.Add(time.Hour), t0.Add(2*time.Hour), model.RentalOverDue)
	newer := seed(m, "item-1", t0.Add(2*time.Hour), t0.Add(3*time.Hour), model.RentalRented) // lazily overdue
	seed(m, "item-1", t0.Add(9*time.Hour), t0.Add(12*time.Hour), model.RentalRented)         // not yet due
	seed(m, "item-2", t0.Add(5*time.Hour), t0.Add(6*time.Hour), model.RentalOverDue)

	r, err := m.FindLatestOverdueByItem(ctx, "item-1", now)
	require.NoError(t, err)
	require.Equal(t, newer, r.ID)
	require.NotEqual(t, older, r.ID)

	_, err = m.FindLatestOverdueByItem(ctx, "item-3", now)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkOverdue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	due := seed(m, "item-1", t0, t0.Add(time.Hour), model.RentalRented)
	notDue := seed(m, "item-2", t0, t0.Add(5*time.Hour), model.RentalRented)
	returned := seed(m, "item-3", t0, t0.Add(time.Hour), model.RentalReturned)

	n, err := m.MarkOverdue(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	for id, want := range map[string]model.RentalStatus{
		due:      model.RentalOverDue,
		notDue:   model.RentalRented,
		returned: model.RentalReturned,
	} {
		r, _ := m.GetRental(ctx, id)
		require.Equal(t, want, r.Status)
	}
}
