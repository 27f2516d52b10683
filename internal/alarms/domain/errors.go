package alarms

import "errors"

var (
	// ErrNotAlerting indicates a status that never raises an alert.
	ErrNotAlerting = errors.New("alarm: status does not alert")
	// ErrUnknownParameter indicates a query for an unmonitored parameter.
	ErrUnknownParameter = errors.New("alarm: unknown parameter")
)
