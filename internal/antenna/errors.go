package antenna

import "errors"

var errPinNotFound = errors.New("antenna: gpio pin not found")
