package merkle

import "errors"

var (
	errBuilt      = errors.New("merkle: tree already built, cannot add more leaves")
	errIndexRange = errors.New("merkle: leaf index out of range")
)
