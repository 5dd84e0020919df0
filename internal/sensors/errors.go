package sensors

import "errors"

var errUnavailable = errors.New("sensors: not available")
