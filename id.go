package eventsource

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewID returns a random UUIDv4 string, suitable as an originator_id when
// nothing about creation order needs to be recoverable from the id itself.
func NewID() string {
	return uuid.NewString()
}

// NewSortableID returns a K-Sortable ID (KSUID): lexicographic ordering of
// the string matches creation order to the second, which is convenient for
// listing or paginating aggregates by approximate age without a separate
// index.
func NewSortableID() string {
	return ksuid.New().String()
}
