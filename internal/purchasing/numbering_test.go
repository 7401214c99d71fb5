package purchasing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextFallbackNumber(t *testing.T) {
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("empty history starts at one", func(t *testing.T) {
		require.Equal(t, "PO-20260310-00001", nextFallbackNumber(nil, day))
	})

	t.Run("increments the maximum sequence", func(t *testing.T) {
		existing := []string{"PO-20260309-00003", "PO-20260310-00007", "PO-20260310-00002"}
		require.Equal(t, "PO-20260310-00008", nextFallbackNumber(existing, day))
	})

	t.Run("legacy timestamp numbers are parsed too", func(t *testing.T) {
		existing := []string{"PO-1700000000", "PO-20260310-00002"}
		require.Equal(t, "PO-20260310-1700000001", nextFallbackNumber(existing, day))
	})

	t.Run("non numeric suffixes are skipped", func(t *testing.T) {
		existing := []string{"PO-DRAFT", "garbage", "PO-20260310-00004", ""}
		require.Equal(t, "PO-20260310-00005", nextFallbackNumber(existing, day))
	})
}

func TestTrailingSequence(t *testing.T) {
	seq, ok := trailingSequence("PO-20260310-00042")
	require.True(t, ok)
	require.EqualValues(t, 42, seq)

	_, ok = trailingSequence("PO-20260310-")
	require.False(t, ok)

	_, ok = trailingSequence("nodash")
	require.False(t, ok)

	_, ok = trailingSequence("PO-ABC")
	require.False(t, ok)
}
