package mock

import "github.com/orenbm/moodledown"

var _ moodledown.Ledger = (*Ledger)(nil)

// Ledger is a mock implementation of moodledown.Ledger.
type Ledger struct {
	ContainsFn func(url string) bool
	RecordFn   func(url, path string) error
	URLsFn     func() map[string]struct{}
}

func (l *Ledger) Contains(url string) bool {
	return l.ContainsFn(url)
}

func (l *Ledger) Record(url, path string) error {
	return l.RecordFn(url, path)
}

func (l *Ledger) URLs() map[string]struct{} {
	return l.URLsFn()
}
