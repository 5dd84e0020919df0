package radio

import "errors"

var errTooLong = errors.New("radio: message exceeds max length")
