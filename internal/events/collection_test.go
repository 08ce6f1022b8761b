package events

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/model"
)

func testEvent(id int64, title string) model.Event {
	return model.Event{
		ID:        id,
		Title:     title,
		DateStart: "2023-01-31T10:00:00.000Z",
		DateEnd:   "2023-01-31T11:00:00.000Z",
	}
}

// requireConsistent checks the id ordering against the map key set.
func requireConsistent(t *testing.T, c Collection) {
	t.Helper()
	seen := make(map[int64]bool, len(c.ids))
	for _, id := range c.ids {
		require.False(t, seen[id], "id %d appears twice in ordering", id)
		seen[id] = true
		_, ok := c.byID[id]
		require.True(t, ok, "id %d in ordering but not in map", id)
	}
	require.Len(t, c.byID, len(c.ids), "map and ordering differ in size")
}

func TestApplyLoaded_ReplacesAndKeepsOrder(t *testing.T) {
	var c Collection
	c, err := c.ApplyCreated(testEvent(99, "old"))
	require.NoError(t, err)

	c = c.ApplyLoaded([]model.Event{testEvent(3, "c"), testEvent(1, "a"), testEvent(2, "b")})

	assert.Equal(t, []int64{3, 1, 2}, c.IDs())
	_, ok := c.Get(99)
	assert.False(t, ok, "load should drop previous contents")
	requireConsistent(t, c)
}

func TestApplyLoaded_Idempotent(t *testing.T) {
	list := []model.Event{testEvent(2, "b"), testEvent(5, "e")}

	var c Collection
	once := c.ApplyLoaded(list)
	twice := once.ApplyLoaded(list)

	assert.True(t, once.Equal(twice))
}

func TestApplyLoaded_DuplicateInputIDs(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(1, "first"), testEvent(2, "b"), testEvent(1, "last")})

	assert.Equal(t, []int64{1, 2}, c.IDs())
	e, _ := c.Get(1)
	assert.Equal(t, "last", e.Title)
	requireConsistent(t, c)
}

func TestApplyCreated_Appends(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(1, "a")})

	next, err := c.ApplyCreated(testEvent(2, "b"))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, next.IDs())
	assert.Equal(t, []int64{1}, c.IDs(), "receiver must not change")
}

func TestApplyCreated_SamePayloadIsNoop(t *testing.T) {
	var c Collection
	c, err := c.ApplyCreated(testEvent(1, "a"))
	require.NoError(t, err)

	again, err := c.ApplyCreated(testEvent(1, "a"))
	require.NoError(t, err)
	assert.True(t, c.Equal(again))
}

func TestApplyCreated_ConflictingPayload(t *testing.T) {
	var c Collection
	c, err := c.ApplyCreated(testEvent(1, "a"))
	require.NoError(t, err)

	next, err := c.ApplyCreated(testEvent(1, "different"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.True(t, c.Equal(next))
}

func TestApplyUpdated_PreservesOrder(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(3, "c"), testEvent(1, "a"), testEvent(2, "b")})

	next, err := c.ApplyUpdated(testEvent(1, "renamed"))
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1, 2}, next.IDs())
	e, _ := next.Get(1)
	assert.Equal(t, "renamed", e.Title)

	old, _ := c.Get(1)
	assert.Equal(t, "a", old.Title, "receiver must not change")
}

func TestApplyUpdated_UnknownID(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(1, "a")})

	next, err := c.ApplyUpdated(testEvent(7, "ghost"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEvent))
	assert.True(t, c.Equal(next))
}

func TestApplyUpdated_Idempotent(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(1, "a"), testEvent(2, "b")})

	once, err := c.ApplyUpdated(testEvent(2, "x"))
	require.NoError(t, err)
	twice, err := once.ApplyUpdated(testEvent(2, "x"))
	require.NoError(t, err)

	assert.True(t, once.Equal(twice))
}

func TestApplyDeleted_RemovesExactlyOne(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(3, "c"), testEvent(1, "a"), testEvent(2, "b")})

	next := c.ApplyDeleted(1)
	assert.Equal(t, c.Len()-1, next.Len())
	assert.Equal(t, []int64{3, 2}, next.IDs())
	_, ok := next.Get(1)
	assert.False(t, ok)
	requireConsistent(t, next)

	again := next.ApplyDeleted(1)
	assert.True(t, next.Equal(again))
}

func TestApplyDeleted_EmptyCollection(t *testing.T) {
	var c Collection
	next := c.ApplyDeleted(42)
	assert.Equal(t, 0, next.Len())
}

func TestOrdered_FollowsIDs(t *testing.T) {
	var c Collection
	c = c.ApplyLoaded([]model.Event{testEvent(9, "i"), testEvent(4, "d")})

	got := c.Ordered()
	require.Len(t, got, 2)
	assert.Equal(t, int64(9), got[0].ID)
	assert.Equal(t, int64(4), got[1].ID)
}

func TestRandomTransitions_KeepInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	var c Collection

	for step := 0; step < 2000; step++ {
		id := int64(rnd.Intn(20))
		switch rnd.Intn(4) {
		case 0:
			n := rnd.Intn(6)
			list := make([]model.Event, 0, n)
			for i := 0; i < n; i++ {
				list = append(list, testEvent(int64(rnd.Intn(20)), "load"))
			}
			c = c.ApplyLoaded(list)
		case 1:
			c, _ = c.ApplyCreated(testEvent(id, fmt.Sprintf("create-%d", rnd.Intn(2))))
		case 2:
			c, _ = c.ApplyUpdated(testEvent(id, "update"))
		case 3:
			c = c.ApplyDeleted(id)
		}
		requireConsistent(t, c)
	}
}

func TestStore_ConcurrentApply(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = s.ApplyCreated(testEvent(id, "x"))
		}(int64(i))
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 50, snap.Len())
	requireConsistent(t, snap)
}

func TestStore_SnapshotIsStable(t *testing.T) {
	s := NewStore()
	s.ApplyLoaded([]model.Event{testEvent(1, "a")})

	before := s.Snapshot()
	require.NoError(t, s.ApplyUpdated(testEvent(1, "b")))
	s.ApplyDeleted(1)

	e, ok := before.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", e.Title)
	assert.Empty(t, SelectOrdered(s))
}

func TestStore_UpdateUnknownReportsError(t *testing.T) {
	s := NewStore()
	err := s.ApplyUpdated(testEvent(5, "x"))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
