package filters

import "errors"

var (
	// ErrFilterNotCreated is returned when the node refuses or fails to
	// create a filter. The registry entry is left inactive.
	ErrFilterNotCreated = errors.New("filter not created")
	// ErrUnknownLabel is returned for labels outside the registry.
	ErrUnknownLabel = errors.New("unknown label")
)
