package quoterepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"equiprental/util/clock"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("quote: not found")

// Quote pins the overdue fee issued for an order id so that a settlement paid
// shortly after the quote is judged against the amount the user was shown.
type Quote struct {
	OrderID         string    `json:"order_id"`
	RentalHistoryID string    `json:"rental_history_id"`
	RentalItemID    string    `json:"rental_item_id"`
	Amount          int64     `json:"amount"`
	OverdueHours    int64     `json:"overdue_hours"`
	ExpectedEndTime time.Time `json:"expected_end_time"`
	IssuedAt        time.Time `json:"issued_at"`
}

type Repo interface {
	Save(ctx context.Context, q Quote, ttl time.Duration) error
	Get(ctx context.Context, orderID string) (*Quote, error)
}

const keyPrefix = "overdue_quote:"

type redisRepo struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) Repo { return &redisRepo{rdb: rdb} }

func (r *redisRepo) Save(ctx context.Context, q Quote, ttl time.Duration) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPrefix+q.OrderID, b, ttl).Err()
}

func (r *redisRepo) Get(ctx context.Context, orderID string) (*Quote, error) {
	b, err := r.rdb.Get(ctx, keyPrefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var q Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("quote %s: %w", orderID, err)
	}
	return &q, nil
}

type entry struct {
	q       Quote
	expires time.Time
}

type memRepo struct {
	mu    sync.Mutex
	clk   clock.Clock
	items map[string]entry
}

// NewMemory is used when no Redis is configured and in tests.
func NewMemory(clk clock.Clock) Repo {
	return &memRepo{clk: clk, items: map[string]entry{}}
}

func (m *memRepo) Save(ctx context.Context, q Quote, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[q.OrderID] = entry{q: q, expires: m.clk.Now().Add(ttl)}
	return nil
}

func (m *memRepo) Get(ctx context.Context, orderID string) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.clk.Now().Before(e.expires) {
		delete(m.items, orderID)
		return nil, ErrNotFound
	}
	q := e.q
	return &q, nil
}
