package phy

import "errors"

var (
	errBeginFailed    = errors.New("phy: begin failed")
	errTransmitFailed = errors.New("phy: transmit failed")
	errNoData         = errors.New("phy: no data available")
)
