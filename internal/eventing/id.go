package eventing

import "github.com/oklog/ulid/v2"

// NewEventID generates a sortable event identifier.
func NewEventID() string {
	return ulid.Make().String()
}
