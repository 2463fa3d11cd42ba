package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	require.Equal(t, DefaultTimeout, New(0).Timeout)
	require.Equal(t, 3*time.Second, New(3*time.Second).Timeout)
	require.Same(t, New(0).Transport, New(time.Second).Transport)
}
