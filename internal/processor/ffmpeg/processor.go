// Package ffmpeg is the free-tier silence-removal backend: signal-level
// silence detection followed by a trim/concat render, both via the ffmpeg
// binary.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/quietcut/quietcut/internal/config"
	"github.com/quietcut/quietcut/internal/media"
	"github.com/quietcut/quietcut/internal/processor"
)

// Processor detects silence with ffmpeg's silencedetect filter and renders
// the trimmed output in a second pass.
type Processor struct {
	binary         string
	threshold      string
	minSilenceSecs float64
	prober         media.Prober
}

func New(cfg config.ProcessingConfig, prober media.Prober) *Processor {
	return &Processor{
		binary:         cfg.FFmpegPath,
		threshold:      cfg.SilenceThreshold,
		minSilenceSecs: cfg.MinSilenceSecs,
		prober:         prober,
	}
}

func (p *Processor) Name() string { return "ffmpeg-silencedetect" }

func (p *Processor) Process(ctx context.Context, inputPath, outputPath string) error {
	duration, err := p.prober.Duration(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", processor.ErrProcessing, err)
	}

	silence, err := p.detectSilence(ctx, inputPath, duration)
	if err != nil {
		return err
	}

	keep := processor.Keep(silence, duration)
	if len(keep) == 0 {
		return fmt.Errorf("%w: video contains no audible sections", processor.ErrProcessing)
	}

	return p.render(ctx, inputPath, outputPath, keep)
}

// detectSilence runs pass one. silencedetect reports on stderr; the run
// pipes the decode to the null muxer.
func (p *Processor) detectSilence(ctx context.Context, inputPath string, duration float64) ([]processor.Segment, error) {
	filter := fmt.Sprintf("silencedetect=n=%s:d=%s",
		p.threshold, strconv.FormatFloat(p.minSilenceSecs, 'f', -1, 64))

	cmd := exec.CommandContext(ctx, p.binary,
		"-i", inputPath,
		"-af", filter,
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: silence detection: %v: %s",
			processor.ErrProcessing, err, tail(stderr.String()))
	}

	return processor.ParseSilence(stderr.String(), duration), nil
}

func (p *Processor) render(ctx context.Context, inputPath, outputPath string, keep []processor.Segment) error {
	cmd := exec.CommandContext(ctx, p.binary,
		"-i", inputPath,
		"-filter_complex", processor.FilterComplex(keep),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-y", outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: render: %v: %s",
			processor.ErrProcessing, err, tail(stderr.String()))
	}
	return nil
}

// tail keeps error output short enough for a job error message.
func tail(s string) string {
	const n = 400
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

var _ processor.Processor = (*Processor)(nil)
