package moodledown

// Ledger is the durable record of which URLs have already been materialized
// to disk. It backs the at-most-once filtering across runs: the classifier
// consults URLs for exclusion and the download engine records each success.
//
// One Ledger instance is shared by all download engines in a process and
// must be safe for concurrent use. The backing store may additionally be
// shared across processes; cross-process writers are an accepted
// (documented) race.
type Ledger interface {
	// Contains reports whether url has already been downloaded.
	Contains(url string) bool

	// Record durably associates url with the local path it produced and
	// adds the URL to the in-memory exclusion set. Recording is fail-soft:
	// implementations add the URL to the in-memory set even when the
	// durable append fails, and return the append error for logging.
	Record(url, path string) error

	// URLs returns a snapshot of the exclusion set.
	URLs() map[string]struct{}
}
