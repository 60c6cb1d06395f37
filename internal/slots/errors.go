package slots

import "errors"

// ErrOutOfRange is returned for slot values outside [0, 47].
var ErrOutOfRange = errors.New("slot value out of range")
