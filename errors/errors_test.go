package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnretriable(t *testing.T) {
	err := Unretriable(fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
	require.False(t, IsUnretriable(fmt.Errorf("bar")))
}

func TestTruncate(t *testing.T) {
	err := fmt.Errorf("%s", "0123456789")
	require.Equal(t, "01234", Truncate(err, 5))
	require.Equal(t, "0123456789", Truncate(err, 50))
	require.Equal(t, "", Truncate(nil, 5))
}

func TestUploadErrorMessage(t *testing.T) {
	err := NewUploadError("Drive", fmt.Errorf("timeout"))
	require.Contains(t, err.Error(), "Drive")
	require.Contains(t, err.Error(), "timeout")
}
