package renderer

import "errors"

var (
	ErrMissingExtension = errors.New("renderer: device lacks a required ray tracing extension")
	ErrNotInitialized   = errors.New("renderer: raytracer is not initialized")
	ErrAlreadyRunning   = errors.New("renderer: raytracer is already initialized")
	ErrMissingShader    = errors.New("renderer: shader program not found")
)
