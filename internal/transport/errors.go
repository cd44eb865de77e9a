package transport

import "errors"

var (
	errMissingType = errors.New("frame type is required")
	errPeerClosed  = errors.New("peer closed")
	errSlowPeer    = errors.New("peer send buffer full")
)
