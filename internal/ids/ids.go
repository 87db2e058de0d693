package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns the identity used for users and documents.
func New() string {
	return uuid.NewString()
}

// NewSortable returns a k-sortable id for audit history rows, so entries
// order by creation even when timestamps collide.
func NewSortable() string {
	return ksuid.New().String()
}
