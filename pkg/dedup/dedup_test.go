package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenWindowMergeAndContains(t *testing.T) {
	w := NewSeenWindow(50)

	w.Merge([]string{"1", "2", "3"})
	assert.True(t, w.Contains("1"))
	assert.True(t, w.Contains("3"))
	assert.False(t, w.Contains("4"))
	assert.Equal(t, []string{"1", "2", "3"}, w.IDs())
}

func TestSeenWindowIgnoresDuplicatesAndEmpty(t *testing.T) {
	w := NewSeenWindow(50)

	w.Merge([]string{"1", "", "1", "2"})
	assert.Equal(t, []string{"1", "2"}, w.IDs())
}

func TestSeenWindowEvictsOldestBeyondCapacity(t *testing.T) {
	w := NewSeenWindow(50)

	var ids []string
	for i := 0; i < 60; i++ {
		ids = append(ids, fmt.Sprintf("%d", i))
	}
	w.Merge(ids)

	require.Equal(t, 50, w.Len())
	assert.False(t, w.Contains("0"), "oldest entries should be evicted")
	assert.False(t, w.Contains("9"))
	assert.True(t, w.Contains("10"))
	assert.True(t, w.Contains("59"))
	assert.Equal(t, "10", w.IDs()[0])
	assert.Equal(t, "59", w.IDs()[49])
}

func TestSeenWindowNeverExceedsCapacityAcrossMerges(t *testing.T) {
	w := NewSeenWindow(50)

	for batch := 0; batch < 10; batch++ {
		var ids []string
		for i := 0; i < 40; i++ {
			ids = append(ids, fmt.Sprintf("b%d-%d", batch, i))
		}
		w.Merge(ids)
		assert.LessOrEqual(t, w.Len(), 50)
	}

	// Most recent batch must still be present in full.
	for i := 0; i < 40; i++ {
		assert.True(t, w.Contains(fmt.Sprintf("b9-%d", i)))
	}
}

func TestSubmittedSetIsAuthoritative(t *testing.T) {
	s := NewSubmittedSet()
	url := "https://x.com/someone/status/123"

	require.True(t, s.ShouldSubmit(url))
	s.Record(url)

	for i := 0; i < 100; i++ {
		assert.False(t, s.ShouldSubmit(url), "recorded URL must never pass again")
	}
	assert.True(t, s.ShouldSubmit("https://x.com/someone/status/456"))
	assert.Equal(t, 1, s.Len())
}
