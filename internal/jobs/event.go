package jobs

// EventName is the wire name of a job stream event. The name doubles as the
// discriminant for the outcome: every terminal status maps to its own name
// and a watcher treats any of the terminal names as stream end.
type EventName string

const (
	// EventStarted is emitted once, when a job first reaches running, or
	// immediately when a watcher attaches to an already-running job.
	EventStarted EventName = "started"
	// EventProgress is emitted on every counter, note, or meta change
	// while the job is running.
	EventProgress EventName = "progress"
	// EventDone is the final event of a successful job.
	EventDone EventName = "done"
	// EventError is the final event of a failed job.
	EventError EventName = "error"
	// EventCancelled is the final event of a cancelled job.
	EventCancelled EventName = "cancelled"
)

// Terminal reports whether the event name ends the stream.
func (n EventName) Terminal() bool {
	switch n {
	case EventDone, EventError, EventCancelled:
		return true
	default:
		return false
	}
}

// eventForTerminal maps a terminal status to its wire event name.
func eventForTerminal(s Status) EventName {
	switch s {
	case StatusError:
		return EventError
	case StatusCancelled:
		return EventCancelled
	default:
		return EventDone
	}
}

// Event pairs a wire name with the full job snapshot current at emission.
type Event struct {
	Name     EventName
	Snapshot Snapshot
}
