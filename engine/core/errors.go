package core

import (
	"errors"
)

var (
	ErrConfigInvalid  = errors.New("invalid configuration")
	ErrTimestampOrder = errors.New("end timestamp precedes begin timestamp")
)
