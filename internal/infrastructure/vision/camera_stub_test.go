//go:build !gocv

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCameraStub_Unavailable(t *testing.T) {
	c := NewCameraBackend("0", nil)
	require.False(t, c.Probe().Available)
	require.NotEmpty(t, c.Probe().Reason)

	_, err := c.Open(context.Background())
	require.Error(t, err)
}
