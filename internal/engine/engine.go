package engine

import (
	"context"
	"errors"
)

// ErrInvalidArgs marks separation requests the adapter refuses to build a
// command line for: bitrate out of range, empty model, bad parallelism.
var ErrInvalidArgs = errors.New("invalid engine arguments")

// ErrEngine marks failures at invocation time: missing input, absent output
// directory, or a non-zero engine exit.
var ErrEngine = errors.New("engine failure")

// SeparationRequest carries everything one separation run needs.
type SeparationRequest struct {
	// InputPath is the audio file to split. Must be an existing regular file.
	InputPath string
	// OutputDir is the directory the engine writes stems under. The engine
	// chooses the nested layout; callers locate stems by recursive search.
	OutputDir string
	// Bitrate is the output mp3 bitrate in kbps, exclusive range (0, 320).
	Bitrate int
	// Jobs is the engine's internal parallelism for one run.
	Jobs int
	// Model names the separation model. Never empty after resolution.
	Model string
}

// Engine separates one audio file into a vocals stem and a non-vocals stem.
type Engine interface {
	Separate(ctx context.Context, req SeparationRequest) error
	Catalog() Catalog
}
