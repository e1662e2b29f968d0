package handler

// QueryStatusChecker reports whether the query that owns a split read is
// still running. It is polled once per loop iteration.
type QueryStatusChecker interface {
	IsQueryRunning() bool
}

// CheckerFunc adapts a function to QueryStatusChecker.
type CheckerFunc func() bool

func (f CheckerFunc) IsQueryRunning() bool { return f() }

// AlwaysRunning never cancels; context cancellation still applies.
var AlwaysRunning QueryStatusChecker = CheckerFunc(func() bool { return true })
