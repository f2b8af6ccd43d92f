package orchestrator

// Detection states reported in Status.
const (
	StateIdle   = "idle"
	StateActive = "active"
)

// CycleSpanName names the trace span wrapping one polling iteration.
const CycleSpanName = "poll_cycle"
