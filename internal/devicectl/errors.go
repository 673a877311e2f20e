package devicectl

import "errors"

var (
	// ErrUnreachable indicates the device host could not be contacted.
	ErrUnreachable = errors.New("devicectl: device unreachable")

	// ErrRejected indicates the device returned a non-success status.
	ErrRejected = errors.New("devicectl: device rejected request")

	// ErrBadResponse indicates the device returned an unparseable body.
	ErrBadResponse = errors.New("devicectl: malformed device response")
)
