package sys

import (
	"github.com/petermattis/goid"
)

// GetGID returns the id of the calling goroutine. Only meant for log lines
// and ownership checks, never for scheduling decisions.
func GetGID() uint64 {
	id := goid.Get()
	return uint64(id)
}
