package sbt

import "errors"

var (
	ErrInvalidCapabilities = errors.New("sbt: invalid device capabilities")
	ErrGroupMismatch       = errors.New("sbt: shader group table does not match the program registration")
	ErrRecordCount         = errors.New("sbt: hit record count does not match the layout")
	ErrEmptyTable          = errors.New("sbt: table has an empty segment")
	ErrHandleSize          = errors.New("sbt: group handle data has the wrong size")
	ErrRecursionDepth      = errors.New("sbt: recursion depth exceeds the device maximum")
	ErrInvalidProgram      = errors.New("sbt: invalid shader program")
)
