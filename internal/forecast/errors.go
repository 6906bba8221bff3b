package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownZone is returned for zone identifiers outside the configured set.
	ErrUnknownZone = errors.New("unknown forecast zone")

	// ErrRenderUnavailable means the rendering capability could not produce
	// markup (network failure, timeout, upstream down). Retryable by a later
	// request; never retried automatically within a single fetch.
	ErrRenderUnavailable = errors.New("renderer unavailable")

	// ErrParseFailure means markup was obtained but the expected structure was
	// missing, typically because the upstream changed its layout. Needs a code
	// update rather than a retry.
	ErrParseFailure = errors.New("forecast markup parse failure")
)

// parseErr wraps ErrParseFailure with the zone and the marker or selector that
// failed, without dumping page content into the error chain.
func parseErr(zone ZoneID, marker, detail string) error {
	return fmt.Errorf("%w: zone %s: %s: %s", ErrParseFailure, zone, marker, detail)
}
