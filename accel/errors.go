package accel

import "errors"

var (
	ErrInvalidGeometry      = errors.New("accel: invalid geometry descriptor")
	ErrOutOfOrder           = errors.New("accel: build session step out of order")
	ErrBuildFailed          = errors.New("accel: acceleration structure build failed")
	ErrMissingBarrier       = errors.New("accel: builds not separated by a build barrier")
	ErrTopLevelBeforeBottom = errors.New("accel: bottom level build recorded after the top level build")
	ErrNoTopLevel           = errors.New("accel: no top level build recorded")
	ErrUnpublishedTopLevel  = errors.New("accel: top level build not followed by a barrier to the tracing stages")
	ErrDuplicateBuild       = errors.New("accel: structure built more than once")
	ErrUnknownReference     = errors.New("accel: instance references a structure outside the session")
	ErrInstanceCount        = errors.New("accel: instance factory returned the wrong number of instances")
	ErrRecordOffsetRange    = errors.New("accel: instance record offset out of range")
	ErrSharedRecordOffset   = errors.New("accel: instances share a hit record")
)
