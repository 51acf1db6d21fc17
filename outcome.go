package moodledown

// Status is the terminal state of one download attempt.
type Status int

const (
	// StatusSuccess means a file was written and recorded in the ledger.
	StatusSuccess Status = iota

	// StatusSkipped means the attempt was a legitimate no-op, e.g. an
	// assignment with no intro attachments. Skips count as successes in
	// batch summaries.
	StatusSkipped

	// StatusFailed means no usable file was produced.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of attempting one resource. Outcomes are returned
// synchronously and never persisted; only successes propagate into the
// ledger.
type Outcome struct {
	Status   Status
	Message  string
	Filepath string // empty on failure
	Size     int64
}

// OK reports whether the attempt produced a usable result (including skips).
func (o Outcome) OK() bool {
	return o.Status != StatusFailed
}

// ProgressFunc receives human-readable status updates during a batch
// download. Percent is in [0,100] and never decreases within one batch.
// Callbacks run synchronously on the batch goroutine and must not block.
type ProgressFunc func(message string, percent float64)
