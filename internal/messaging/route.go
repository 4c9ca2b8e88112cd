package messaging

import (
	"errors"
	"fmt"
)

// Routing errors.
var (
	ErrUnknownKind   = errors.New("unknown message kind")
	ErrUnknownOrigin = errors.New("unknown origin")
	ErrMissingTarget = errors.New("reply has no target")
	ErrLoopback      = errors.New("message would be delivered to its sender")
)

var destinations = map[Kind]Origin{
	KindExtractField:      OriginContent,
	KindExtractAllFields:  OriginContent,
	KindActivatePicker:    OriginContent,
	KindDeactivatePicker:  OriginContent,
	KindFetchAndExtract:   OriginBackground,
	KindElementHovered:    OriginPanel,
	KindElementPicked:     OriginPanel,
	KindPickerDeactivated: OriginPanel,
}

// Route picks the destination context for env. An explicit Target wins;
// replies must carry one. Nothing is routed back to its own origin.
func Route(env Envelope) (Origin, error) {
	if !env.Origin.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOrigin, env.Origin)
	}

	dest := env.Target
	switch {
	case dest != "":
		if !dest.Valid() {
			return "", fmt.Errorf("%w: %q", ErrUnknownOrigin, dest)
		}
	case env.IsReply():
		return "", ErrMissingTarget
	default:
		d, ok := destinations[env.Kind]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
		}
		dest = d
	}

	if dest == env.Origin {
		return "", fmt.Errorf("%w: %s from %s", ErrLoopback, env.Kind, env.Origin)
	}
	return dest, nil
}
