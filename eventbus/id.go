package eventbus

import "github.com/pborman/uuid"

// newEventID mints the unique id every outbound envelope carries for
// inbound idempotence (spec.md §4.7 step 2).
func newEventID() (string, error) {
	return uuid.NewRandom().String(), nil
}
