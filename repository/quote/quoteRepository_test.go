package quoterepo

import (
	"context"
	"testing"
	"time"

	"equiprental/util/clock"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var issued = time.Date(2024, 11, 2, 13, 5, 0, 0, time.UTC)

func sample() Quote {
	return Quote{
		OrderID:         "item-1-1730552700000-ab12cd34",
		RentalHistoryID: "r-1",
		RentalItemID:    "item-1",
		Amount:          2000,
		OverdueHours:    2,
		ExpectedEndTime: issued.Add(-65 * time.Minute),
		IssuedAt:        issued,
	}
}

func TestRedis_SaveGetExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	repo := NewRedis(rdb)
	q := sample()

	require.NoError(t, repo.Save(ctx, q, 10*time.Minute))

	got, err := repo.Get(ctx, q.OrderID)
	require.NoError(t, err)
	require.Equal(t, q.Amount, got.Amount)
	require.Equal(t, q.RentalHistoryID, got.RentalHistoryID)
	require.True(t, q.ExpectedEndTime.Equal(got.ExpectedEndTime))

	mr.FastForward(11 * time.Minute)
	_, err = repo.Get(ctx, q.OrderID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_Missing(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err := NewRedis(rdb).Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	clk := clock.NewFixed(issued)
	repo := NewMemory(clk)
	ctx := context.Background()
	q := sample()

	require.NoError(t, repo.Save(ctx, q, 10*time.Minute))

	clk.Advance(9 * time.Minute)
	got, err := repo.Get(ctx, q.OrderID)
	require.NoError(t, err)
	require.Equal(t, int64(2000), got.Amount)

	clk.Advance(time.Minute)
	_, err = repo.Get(ctx, q.OrderID)
	require.ErrorIs(t, err, ErrNotFound)
}
