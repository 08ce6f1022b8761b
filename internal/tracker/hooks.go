package tracker

import "time"

// Op names a sync operation.
type Op string

const (
	OpLoad   Op = "load"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Request is emitted right before an operation's remote call. It carries no
// state change and exists for observability only.
type Request struct {
	ID string
	Op Op
	At time.Time
}

// Outcome is emitted once an operation has finished and, on success, after
// the event store was updated. Err is nil on success.
type Outcome struct {
	ID  string
	Op  Op
	Err error
	At  time.Time
}

// Hooks observe operations. For a single operation OnRequest always fires
// before OnOutcome; nothing is guaranteed across operations. Hooks run on
// the calling goroutine with no Manager lock held.
type Hooks struct {
	OnRequest func(Request)
	OnOutcome func(Outcome)
}
