package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	t.Parallel()

	newIndex := func() *Index {
		x := NewIndex()
		x.Load([]Interval{
			interval("r1", "user1", "lab-a", at(9, 0), at(10, 0)),
			interval("r2", "user2", "lab-a", at(9, 30), at(10, 30)),
			interval("r3", "user1", "lab-b", at(14, 0), at(15, 0)),
		})
		return x
	}

	t.Run("counts overlaps per resource", func(t *testing.T) {
		t.Parallel()
		x := newIndex()

		assert.Equal(t, 2, x.CountOverlapping("lab-a", at(9, 45), at(10, 15)))
		assert.Equal(t, 1, x.CountOverlapping("lab-a", at(10, 0), at(11, 0)))
		assert.Equal(t, 0, x.CountOverlapping("lab-a", at(10, 30), at(11, 0)))
		assert.Equal(t, 0, x.CountOverlapping("lab-c", at(8, 0), at(22, 0)))
		assert.Equal(t, 2, x.PeakOverlap("lab-a", at(8, 0), at(22, 0), ""))
		assert.Equal(t, 1, x.PeakOverlap("lab-a", at(8, 0), at(22, 0), "r2"))
	})

	t.Run("finds user overlaps across resources", func(t *testing.T) {
		t.Parallel()
		x := newIndex()

		found := x.OverlapsForUser("user1", at(9, 30), at(14, 30), "")
		require.Len(t, found, 2)
		assert.Equal(t, "r1", found[0].ID)
		assert.Equal(t, "r3", found[1].ID)

		assert.Empty(t, x.OverlapsForUser("user1", at(10, 0), at(14, 0), ""))
		assert.Len(t, x.OverlapsForUser("user1", at(9, 30), at(14, 30), "r3"), 1)
	})

	t.Run("cancelled and completed intervals stop counting", func(t *testing.T) {
		t.Parallel()
		x := newIndex()

		assert.True(t, x.MarkCancelled("r1"))
		assert.False(t, x.MarkCancelled("r1"))
		assert.True(t, x.MarkCompleted("r3"))

		assert.Equal(t, 1, x.CountOverlapping("lab-a", at(9, 0), at(10, 0)))
		assert.Empty(t, x.OverlapsForUser("user1", at(8, 0), at(22, 0), ""))
		assert.Equal(t, 1, x.Len())
	})

	t.Run("replace moves an interval", func(t *testing.T) {
		t.Parallel()
		x := newIndex()

		x.Replace(interval("r1", "user1", "lab-a", at(16, 0), at(17, 0)))

		assert.Equal(t, 1, x.CountOverlapping("lab-a", at(9, 0), at(10, 0)))
		active := x.ActiveOn("lab-a", at(8, 0), at(22, 0))
		require.Len(t, active, 2)
		assert.Equal(t, "r2", active[0].ID)
		assert.Equal(t, "r1", active[1].ID)
	})

	t.Run("reload replaces a single resource", func(t *testing.T) {
		t.Parallel()
		x := newIndex()

		x.ReloadResource("lab-a", []Interval{interval("r9", "user9", "lab-a", at(12, 0), at(13, 0))})

		assert.Equal(t, 0, x.CountOverlapping("lab-a", at(9, 0), at(11, 0)))
		assert.Equal(t, 1, x.CountOverlapping("lab-a", at(12, 0), at(13, 0)))
		assert.Equal(t, 1, x.CountOverlapping("lab-b", at(14, 0), at(15, 0)))
		_, ok := x.Get("r2")
		assert.False(t, ok)
	})

	t.Run("elapsed lists intervals that ended", func(t *testing.T) {
		t.Parallel()
		x := newIndex()

		elapsed := x.Elapsed(at(10, 30))
		require.Len(t, elapsed, 2)
		assert.Equal(t, "r1", elapsed[0].ID)
		assert.Equal(t, "r2", elapsed[1].ID)
	})

	t.Run("inactive intervals are not indexed", func(t *testing.T) {
		t.Parallel()
		x := NewIndex()
		cancelled := interval("r1", "user1", "lab-a", at(9, 0), at(10, 0))
		cancelled.Status = StatusCancelled
		x.Insert(cancelled)

		assert.Equal(t, 0, x.Len())
	})
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a'+i%26)) + string(rune('0'+i/26))
			x.Insert(interval(id, id, "lab-a", at(8, i), at(9, i)))
			_ = x.CountOverlapping("lab-a", at(8, 0), at(10, 0))
			_ = x.ActiveOn("lab-a", at(8, 0), at(10, 0))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, x.Len())
	assert.Equal(t, 50, x.CountOverlapping("lab-a", at(8, 0), at(10, 0)))
}

func TestIntervalsOf(t *testing.T) {
	t.Parallel()

	type row struct{ id, status string }
	rows := []row{{"r1", "active"}, {"r2", "cancelled"}}

	got := IntervalsOf(rows, func(r row) Interval {
		return Interval{ID: r.id, ResourceID: "lab-a", Start: at(9, 0), End: at(10, 0), Status: Status(r.status)}
	})

	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.True(t, got[0].Active())
	assert.False(t, got[1].Active())
	assert.Empty(t, IntervalsOf[row](nil, nil))
}
