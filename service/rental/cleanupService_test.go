package rental

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"equiprental/model"
	rrepo "equiprental/repository/rental"
	"equiprental/util/clock"

	"github.com/stretchr/testify/require"
)

func TestCleaner_MarkOverdue(t *testing.T) {
	ctx := context.Background()
	store := rrepo.NewMemory()
	id := store.PutRental(*rented())

	c := NewCleaner(store, clock.NewFixed(due.Add(time.Minute)), slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := c.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	r, err := store.GetRental(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.RentalOverDue, r.Status)
}

func TestCleaner_RunStopsOnCancel(t *testing.T) {
	store := rrepo.NewMemory()
	c := NewCleaner(store, clock.NewFixed(due), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop")
	}
}
