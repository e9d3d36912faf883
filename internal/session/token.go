package session

import "sync/atomic"

// stopFlag is the shared cancellation signal for one aggregation session.
// The coordinator is the only writer; adapters observe it through Token.
type stopFlag struct {
	v atomic.Bool
}

// Token is a read-only view of the session stop flag. Adapters poll it at a
// bounded interval instead of blocking, so cancellation is noticed within
// roughly 100ms even with no inbound traffic.
type Token struct {
	flag *stopFlag
}

// Stopped reports whether the session has been asked to shut down.
func (t Token) Stopped() bool {
	if t.flag == nil {
		return false
	}
	return t.flag.v.Load()
}
