package drill

// EventSink receives run lifecycle notifications. Implementations must be
// safe for concurrent use; sessions start from many goroutines.
type EventSink interface {
	// RunStarted fires once when the overall run begins.
	RunStarted(name string)

	// SessionStarted fires after a session's login attempt, pass or fail.
	SessionStarted(profile string, vuID int, v Verdict)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RunStarted(string)                   {}
func (NopSink) SessionStarted(string, int, Verdict) {}

var _ EventSink = NopSink{}
