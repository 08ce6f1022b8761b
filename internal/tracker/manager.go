// Package tracker runs the remote sync operations of the time tracker and
// reconciles their outcomes into the event store.
//
// Every operation has three phases: a request signal (Hooks.OnRequest), the
// remote call, and a terminal outcome. On success the outcome feeds the
// matching events.Store transition; on failure the store is left untouched
// and the caller receives a *SyncError. There are no retries.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/calendar"
	"timetrack/internal/events"
	appLog "timetrack/internal/log"
	"timetrack/internal/model"
	"timetrack/internal/recorder"
	"timetrack/internal/remote"
)

// DefaultTitle is the placeholder title of newly recorded events.
const DefaultTitle = "New event"

// Remote is the remote events collection.
type Remote interface {
	List(ctx context.Context) ([]model.Event, error)
	Create(ctx context.Context, d model.Draft) (model.Event, error)
	Replace(ctx context.Context, e model.Event) (model.Event, error)
	Delete(ctx context.Context, id int64) error
}

// Options tunes a Manager. Zero values pick defaults.
type Options struct {
	// Title is used for events created from the recorder.
	Title string
	// Now stamps dateEnd on create and hook timestamps.
	Now func() time.Time
	// NewRequestID generates operation ids; defaults to UUIDv7.
	NewRequestID func() string
	Hooks        Hooks
}

// Manager is the event state manager: it owns the store, the recorder and
// the remote, and exposes the four sync operations.
type Manager struct {
	store  *events.Store
	remote Remote
	rec    *recorder.Recorder
	opts   Options

	mu          sync.Mutex
	loaded      bool
	lastErr     string
	lastErrKind Kind
}

// New wires a Manager. store and rec may be shared with other components;
// the Manager only mutates them through their transitions.
func New(store *events.Store, r Remote, rec *recorder.Recorder, opts Options) *Manager {
	if store == nil {
		store = events.NewStore()
	}
	if rec == nil {
		rec = recorder.New(opts.Now)
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRequestID == nil {
		opts.NewRequestID = newRequestID
	}
	return &Manager{
		store:  store,
		remote: r,
		rec:    rec,
		opts:   opts,
	}
}

func newRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Store returns the event store the Manager reconciles into.
func (m *Manager) Store() *events.Store {
	return m.store
}

// Recorder returns the recorder supplying dateStart on create.
func (m *Manager) Recorder() *recorder.Recorder {
	return m.rec
}

// Load fetches the whole collection and replaces the store on success.
func (m *Manager) Load(ctx context.Context) ([]model.Event, error) {
	ctx, id := m.begin(ctx, OpLoad)

	list, err := m.remote.List(ctx)
	if err != nil {
		return nil, m.fail(id, OpLoad, newLoadError(err))
	}

	m.store.ApplyLoaded(list)

	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()

	m.succeed(id, OpLoad, KindLoadFailed, "count", len(list))
	return events.SelectOrdered(m.store), nil
}

// Create records the interval [recorder start, now] as a new event with the
// placeholder title. The recorder is not stopped; see Stop.
func (m *Manager) Create(ctx context.Context) (model.Event, error) {
	ctx, id := m.begin(ctx, OpCreate)

	since, ok := m.rec.Since()
	if !ok {
		return model.Event{}, m.fail(id, OpCreate, newCreateError(recorder.ErrIdle))
	}

	return m.create(ctx, id, model.Draft{
		Title:     m.opts.Title,
		DateStart: model.FormatTimestamp(since),
		DateEnd:   model.FormatTimestamp(m.opts.Now()),
	})
}

// CreateDraft creates an event from a ready-made draft, bypassing the
// recorder. Import uses it; failures are CreateFailed like Create's.
func (m *Manager) CreateDraft(ctx context.Context, d model.Draft) (model.Event, error) {
	ctx, id := m.begin(ctx, OpCreate)
	if d.Title == "" {
		d.Title = m.opts.Title
	}
	return m.create(ctx, id, d)
}

func (m *Manager) create(ctx context.Context, id string, draft model.Draft) (model.Event, error) {
	created, err := m.remote.Create(ctx, draft)
	if err != nil {
		return model.Event{}, m.fail(id, OpCreate, newCreateError(err))
	}

	if err := m.store.ApplyCreated(created); err != nil {
		// The remote assigned an id we already hold with another payload.
		appLog.Error("create reconcile failed", err, "request_id", id, "event_id", created.ID)
		m.emitOutcome(id, OpCreate, err)
		return created, fmt.Errorf("reconcile create: %w", err)
	}

	m.succeed(id, OpCreate, KindCreateFailed, "event_id", created.ID)
	return created, nil
}

// Start begins a recording. It is a no-op while already recording.
func (m *Manager) Start() time.Time {
	return m.rec.Start()
}

// Stop creates the event for the running recording and then returns the
// recorder to idle whatever the create outcome was. A failed create loses
// the recorded interval.
func (m *Manager) Stop(ctx context.Context) (model.Event, error) {
	created, err := m.Create(ctx)
	m.rec.Stop()
	return created, err
}

// Update replaces the event remotely and then in the store, keeping its
// position. If the store does not hold the id the remote change still
// happened; the returned error wraps events.ErrUnknownEvent.
func (m *Manager) Update(ctx context.Context, e model.Event) (model.Event, error) {
	ctx, id := m.begin(ctx, OpUpdate)

	updated, err := m.remote.Replace(ctx, e)
	if err != nil {
		return model.Event{}, m.fail(id, OpUpdate, newUpdateError(err))
	}

	if err := m.store.ApplyUpdated(updated); err != nil {
		appLog.Error("update reconcile failed", err, "request_id", id, "event_id", updated.ID)
		m.emitOutcome(id, OpUpdate, err)
		return updated, fmt.Errorf("reconcile update: %w", err)
	}

	m.succeed(id, OpUpdate, KindUpdateFailed, "event_id", updated.ID)
	return updated, nil
}

// Rename is Update with only the title changed. The event must be loaded.
func (m *Manager) Rename(ctx context.Context, eventID int64, title string) (model.Event, error) {
	e, ok := m.store.Snapshot().Get(eventID)
	if !ok {
		return model.Event{}, fmt.Errorf("rename %d: %w", eventID, events.ErrUnknownEvent)
	}
	e.Title = title
	return m.Update(ctx, e)
}

// Delete removes the event remotely and, only once the remote confirmed,
// from the store.
func (m *Manager) Delete(ctx context.Context, eventID int64) error {
	ctx, id := m.begin(ctx, OpDelete)

	if err := m.remote.Delete(ctx, eventID); err != nil {
		return m.fail(id, OpDelete, newDeleteError(err))
	}

	m.store.ApplyDeleted(eventID)
	m.succeed(id, OpDelete, KindDeleteFailed, "event_id", eventID)
	return nil
}

// Loaded reports whether a Load has succeeded at least once. Until then the
// display layer shows a loading indicator.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// LastError is the user-facing message of the latest failure, or "" once
// an operation of the same kind succeeded again.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Events returns the store's events in enumeration order.
func (m *Manager) Events() []model.Event {
	return events.SelectOrdered(m.store)
}

// Groups derives the day groups from the current store contents.
func (m *Manager) Groups() []calendar.DayGroup {
	return m.GroupReport().Groups
}

// GroupReport is Groups plus the ids of events left out because their
// timestamps could not be parsed.
func (m *Manager) GroupReport() calendar.Report {
	return calendar.GroupByDayReport(m.Events())
}

func (m *Manager) begin(ctx context.Context, op Op) (context.Context, string) {
	id := m.opts.NewRequestID()
	appLog.Debug("sync request", "op", string(op), "request_id", id)
	if m.opts.Hooks.OnRequest != nil {
		m.opts.Hooks.OnRequest(Request{ID: id, Op: op, At: m.opts.Now()})
	}
	return remote.WithRequestID(ctx, id), id
}

func (m *Manager) fail(id string, op Op, se *SyncError) error {
	appLog.Error("sync failed", se.Err, "op", string(op), "request_id", id, "kind", string(se.Kind))

	m.mu.Lock()
	m.lastErr = se.Message
	m.lastErrKind = se.Kind
	m.mu.Unlock()

	m.emitOutcome(id, op, se)
	return se
}

func (m *Manager) succeed(id string, op Op, clears Kind, kv ...any) {
	appLog.Info("sync succeeded", append([]any{"op", string(op), "request_id", id}, kv...)...)

	m.mu.Lock()
	if m.lastErrKind == clears {
		m.lastErr = ""
		m.lastErrKind = ""
	}
	m.mu.Unlock()

	m.emitOutcome(id, op, nil)
}

func (m *Manager) emitOutcome(id string, op Op, err error) {
	if m.opts.Hooks.OnOutcome == nil {
		return
	}
	m.opts.Hooks.OnOutcome(Outcome{ID: id, Op: op, Err: err, At: m.opts.Now()})
}
