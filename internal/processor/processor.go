// Package processor defines the silence-removal backends invoked by
// workers. Backends work on local files; blob transfer happens in the
// worker, not here.
package processor

import (
	"context"
	"errors"
)

// ErrProcessing wraps any backend failure. The reason text is what the user
// eventually sees in the job's error message.
var ErrProcessing = errors.New("processing failed")

// Processor turns an input video into a silence-trimmed output video.
type Processor interface {
	Name() string
	// Process reads inputPath and writes the result to outputPath.
	Process(ctx context.Context, inputPath, outputPath string) error
}
