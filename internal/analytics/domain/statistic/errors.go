package statistic

import "errors"

var (
	// ErrInvalidWindow is returned when the window is outside 1..MaxWindowHours.
	ErrInvalidWindow = errors.New("statistic: invalid window")
)
