// Package events holds the canonical in-memory collection of tracked events.
//
// A Collection is an immutable value: every transition returns a new
// Collection and leaves the receiver untouched. The transitions only
// reconcile outcomes that the remote store already confirmed; the package
// performs no I/O.
//
// Invariants held by every reachable Collection:
//   - the set of ids in the ordering equals the key set of the map
//   - no id appears twice in the ordering
package events

import (
	"errors"
	"fmt"

	"timetrack/internal/model"
)

var (
	// ErrDuplicateID is returned by ApplyCreated when the id is already
	// present with a different payload.
	ErrDuplicateID = errors.New("event id already exists")

	// ErrUnknownEvent is returned by ApplyUpdated when the id is absent.
	ErrUnknownEvent = errors.New("event not found")
)

// Collection maps ids to events and keeps an explicit enumeration order.
// The zero value is an empty collection.
type Collection struct {
	byID map[int64]model.Event
	ids  []int64
}

// ApplyLoaded replaces the whole collection. Enumeration order follows the
// input order. A repeated id keeps its first position and its last payload.
func (c Collection) ApplyLoaded(list []model.Event) Collection {
	next := Collection{
		byID: make(map[int64]model.Event, len(list)),
		ids:  make([]int64, 0, len(list)),
	}
	for _, e := range list {
		if _, seen := next.byID[e.ID]; !seen {
			next.ids = append(next.ids, e.ID)
		}
		next.byID[e.ID] = e
	}
	return next
}

// ApplyCreated appends a newly created event. Re-applying the same event is
// a no-op; applying a different payload under an existing id fails with
// ErrDuplicateID and returns c unchanged.
func (c Collection) ApplyCreated(e model.Event) (Collection, error) {
	if existing, ok := c.byID[e.ID]; ok {
		if existing == e {
			return c, nil
		}
		return c, fmt.Errorf("create %d: %w", e.ID, ErrDuplicateID)
	}

	next := c.clone(1)
	next.ids = append(next.ids, e.ID)
	next.byID[e.ID] = e
	return next, nil
}

// ApplyUpdated replaces the payload stored under e.ID without moving it in
// the enumeration order. An absent id returns c unchanged together with
// ErrUnknownEvent so the caller can report the inconsistency.
func (c Collection) ApplyUpdated(e model.Event) (Collection, error) {
	if _, ok := c.byID[e.ID]; !ok {
		return c, fmt.Errorf("update %d: %w", e.ID, ErrUnknownEvent)
	}

	next := c.clone(0)
	next.byID[e.ID] = e
	return next, nil
}

// ApplyDeleted removes id from the collection. Absent ids are a no-op.
func (c Collection) ApplyDeleted(id int64) Collection {
	if _, ok := c.byID[id]; !ok {
		return c
	}

	next := Collection{
		byID: make(map[int64]model.Event, len(c.byID)-1),
		ids:  make([]int64, 0, len(c.ids)-1),
	}
	for _, existing := range c.ids {
		if existing == id {
			continue
		}
		next.ids = append(next.ids, existing)
		next.byID[existing] = c.byID[existing]
	}
	return next
}

// Ordered returns the events in enumeration order. This is the only
// supported way to read events out; map iteration order carries no meaning.
func (c Collection) Ordered() []model.Event {
	out := make([]model.Event, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns a copy of the enumeration order.
func (c Collection) IDs() []int64 {
	out := make([]int64, len(c.ids))
	copy(out, c.ids)
	return out
}

// Get looks up a single event.
func (c Collection) Get(id int64) (model.Event, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Len is the number of events held.
func (c Collection) Len() int {
	return len(c.ids)
}

// Equal reports whether both collections hold the same events in the same
// order.
func (c Collection) Equal(other Collection) bool {
	if len(c.ids) != len(other.ids) || len(c.byID) != len(other.byID) {
		return false
	}
	for i, id := range c.ids {
		if other.ids[i] != id {
			return false
		}
		if c.byID[id] != other.byID[id] {
			return false
		}
	}
	return true
}

// clone copies c with room for extra additional ids.
func (c Collection) clone(extra int) Collection {
	next := Collection{
		byID: make(map[int64]model.Event, len(c.byID)+extra),
		ids:  make([]int64, len(c.ids), len(c.ids)+extra),
	}
	copy(next.ids, c.ids)
	for id, e := range c.byID {
		next.byID[id] = e
	}
	return next
}
