package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrIdle is returned when an operation needs a running recording.
var ErrIdle = errors.New("recorder is idle")

// State represents the current recorder mode.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// Recorder is the idle / recording-since-T state machine that supplies the
// start timestamp of the next event. It never creates events itself; the
// caller decides what happens on Stop.
type Recorder struct {
	mu    sync.Mutex
	now   Clock
	since time.Time
	state State
}

// New creates an idle Recorder. A nil clock uses time.Now.
func New(now Clock) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		now:   now,
		state: StateIdle,
	}
}

// Start moves Idle to Recording(now). Calling Start while recording is
// ignored and keeps the original start time.
func (r *Recorder) Start() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRecording {
		return r.since
	}
	r.state = StateRecording
	r.since = r.now()
	return r.since
}

// Stop moves Recording(since) to Idle and returns since. ok is false when
// the recorder was already idle.
func (r *Recorder) Stop() (since time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return time.Time{}, false
	}
	since = r.since
	r.state = StateIdle
	r.since = time.Time{}
	return since, true
}

// Since returns the start of the running recording.
func (r *Recorder) Since() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return time.Time{}, false
	}
	return r.since, true
}

// State reports whether the recorder is idle or recording.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ElapsedSeconds is floor((now - since) / 1s) while recording and 0 while
// idle. It is display-only.
func (r *Recorder) ElapsedSeconds() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	d := r.now().Sub(r.since)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatElapsed renders seconds as zero padded hh:mm:ss. Hours are not
// wrapped at 24.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	seconds -= hours * 3600
	minutes := seconds / 60
	seconds -= minutes * 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
