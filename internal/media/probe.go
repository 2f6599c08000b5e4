// Package media extracts metadata from uploaded files via ffprobe.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// ErrProbe wraps any failure to read media metadata. Callers treat it as a
// validation failure: a file we cannot probe is never accepted.
var ErrProbe = errors.New("media probe failed")

// Prober reports the duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobe implements Prober by shelling out to ffprobe.
type FFprobe struct {
	binary string
}

func NewFFprobe(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{binary: binary}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: %v: %s", ErrProbe, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe output: %v", ErrProbe, err)
	}
	if out.Format.Duration == "" {
		return 0, fmt.Errorf("%w: no duration in ffprobe output", ErrProbe)
	}

	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %v", ErrProbe, out.Format.Duration, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %v", ErrProbe, d)
	}
	return d, nil
}
