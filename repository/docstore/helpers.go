package docstore

import (
	"time"

	"github.com/fastygo/exportflow/repository"
)

var newestFirst = []repository.Sort{{Field: repository.SortField, Order: repository.Descending}}

// sortKey is microseconds since epoch; float64 holds it exactly, unlike nanoseconds.
func sortKey(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
