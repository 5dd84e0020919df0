package accel

import "errors"

var (
	errAlreadyRecording = errors.New("accel: already recording")
	errIMUUnavailable   = errors.New("accel: imu not available")
	errNoStorage        = errors.New("accel: insufficient storage")
	errLowBattery       = errors.New("accel: battery below minimum")
)
