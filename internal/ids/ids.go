package ids

import "github.com/segmentio/ksuid"

// New returns a time-sortable identifier for assets and jobs.
func New() string {
	return ksuid.New().String()
}
