package rental

import (
	"context"
	"sort"
	"sync"
	"time"

	"equiprental/model"

	"github.com/google/uuid"
)

// Memory is an in-process Repo with the same optimistic semantics as the
// Postgres store: writes are staged per transaction and applied at commit
// only if every touched record still carries the version it was read with.
type Memory struct {
	mu        sync.Mutex
	rentals   map[string]model.RentalRecord
	payments  map[string]model.PaymentRecord
	byOrder   map[string]string
	itemTypes map[string]model.ItemTypeInfo

	// BeforeCommit, when set, runs after fn returns and before the commit
	// check. Tests use it to interleave writers.
	BeforeCommit func()
}

var _ Repo = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		rentals:   map[string]model.RentalRecord{},
		payments:  map[string]model.PaymentRecord{},
		byOrder:   map[string]string{},
		itemTypes: map[string]model.ItemTypeInfo{},
	}
}

// PutRental seeds or replaces a record, assigning an id when empty.
func (m *Memory) PutRental(r model.RentalRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.rentals[r.ID] = r
	return r.ID
}

func (m *Memory) PutItemType(it model.ItemTypeInfo) {
	m.mu.Lock()
	m.itemTypes[it.ID] = it
	m.mu.Unlock()
}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{m: m, rentals: map[string]model.RentalRecord{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.BeforeCommit != nil {
		m.BeforeCommit()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, staged := range tx.rentals {
		cur, ok := m.rentals[id]
		if !ok || cur.Version != staged.Version {
			return ErrConflict
		}
	}
	seen := map[string]bool{}
	for _, p := range tx.payments {
		if _, dup := m.byOrder[p.OrderID]; dup || seen[p.OrderID] {
			return ErrDuplicateOrder
		}
		seen[p.OrderID] = true
	}

	for id, staged := range tx.rentals {
		staged.Version++
		m.rentals[id] = staged
	}
	for _, p := range tx.payments {
		m.payments[p.ID] = p
		m.byOrder[p.OrderID] = p.ID
	}
	return nil
}

func (m *Memory) GetRental(ctx context.Context, id string) (*model.RentalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.payments[id]
	return &p, nil
}

func (m *Memory) ListPayments(ctx context.Context, rentalID string) ([]model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PaymentRecord
	for _, p := range m.payments {
		if p.RentalHistoryID == rentalID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].PaymentDate.Before(out[j].PaymentDate)
	})
	return out, nil
}

func (m *Memory) FindLatestOverdueByItem(ctx context.Context, itemID string, now time.Time) (*model.RentalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.RentalRecord
	for _, r := range m.rentals {
		if r.RentalItemID != itemID {
			continue
		}
		overdue := r.Status == model.RentalOverDue ||
			(r.Status == model.RentalRented && r.EndTime.Before(now))
		if !overdue {
			continue
		}
		if best == nil || r.StartTime.After(best.StartTime) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *Memory) ItemType(ctx context.Context, itemTypeID string) (*model.ItemTypeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itemTypes[itemTypeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *Memory) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.rentals {
		if r.Status == model.RentalRented && r.EndTime.Before(now) {
			r.Status = model.RentalOverDue
			r.Version++
			m.rentals[id] = r
			n++
		}
	}
	return n, nil
}

type memTx struct {
	m        *Memory
	rentals  map[string]model.RentalRecord
	payments []model.PaymentRecord
}

func (t *memTx) GetRental(ctx context.Context, id string) (*model.RentalRecord, error) {
	if r, ok := t.rentals[id]; ok {
		return &r, nil
	}
	return t.m.GetRental(ctx, id)
}

func (t *memTx) PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error) {
	for _, p := range t.payments {
		if p.OrderID == orderID {
			p := p
			return &p, nil
		}
	}
	return t.m.PaymentByOrderID(ctx, orderID)
}

func (t *memTx) UpdateRental(ctx context.Context, r *model.RentalRecord) error {
	if staged, ok := t.rentals[r.ID]; ok && staged.Version != r.Version {
		return ErrConflict
	}
	t.rentals[r.ID] = *r
	return nil
}

func (t *memTx) InsertPayment(ctx context.Context, p *model.PaymentRecord) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	t.payments = append(t.payments, *p)
	return nil
}
