package config

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// CheckClockDrift queries server once and returns how far the local
// clock differs from it. Every deadline computed by validation/chain
// trusts the local clock; this only ever produces a value for main to
// log a warning with, never a correction applied to that clock.
func CheckClockDrift(server string) (time.Duration, error) {
	response, err := ntp.Query(server)
	if err != nil {
		return 0, fmt.Errorf("config: ntp query %s: %w", server, err)
	}
	if err := response.Validate(); err != nil {
		return 0, fmt.Errorf("config: ntp response from %s: %w", server, err)
	}
	return response.ClockOffset, nil
}
