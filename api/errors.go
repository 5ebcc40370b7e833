package api

import "errors"

var (
	errInvalidWindow = errors.New("window must be a non-negative integer")
	errNoMonitor     = errors.New("health monitor not configured")
	errNoBroker      = errors.New("event stream not configured")
)
