// Package whisper is the premium silence-removal backend: speech segments
// come from a transcription HTTP service, and everything outside them is
// cut with the same trim/concat render as the free tier.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/quietcut/quietcut/internal/config"
	"github.com/quietcut/quietcut/internal/processor"
)

// Sentinel errors for transcription service failures.
var (
	ErrServiceUnavailable = errors.New("transcription service unreachable")
	ErrTranscription      = errors.New("transcription failed")
)

// Transcriber returns speech segments for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]processor.Segment, error)
}

// HTTPTranscriber implements Transcriber against a whisper-compatible HTTP
// service.
type HTTPTranscriber struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPTranscriber(cfg config.WhisperConfig) *HTTPTranscriber {
	return &HTTPTranscriber{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type transcribeResponse struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string) ([]processor.Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	u := t.baseURL + "/v1/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTranscription, resp.StatusCode)
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding transcription response: %w", err)
	}

	segments := make([]processor.Segment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		segments = append(segments, processor.Segment{Start: s.Start, End: s.End})
	}
	return segments, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// Processor wires the transcriber to the shared render pipeline.
type Processor struct {
	ffmpegPath  string
	transcriber Transcriber
}

func New(cfg config.ProcessingConfig, t Transcriber) *Processor {
	return &Processor{ffmpegPath: cfg.FFmpegPath, transcriber: t}
}

func (p *Processor) Name() string { return "whisper-transcription" }

func (p *Processor) Process(ctx context.Context, inputPath, outputPath string) error {
	audioPath, err := p.extractAudio(ctx, inputPath)
	if err != nil {
		return err
	}
	defer os.Remove(audioPath)

	speech, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("%w: %v", processor.ErrProcessing, err)
	}

	if len(speech) == 0 {
		// No speech detected: pass the file through unchanged, matching the
		// free tier's behavior for fully audible input.
		return p.copyStream(ctx, inputPath, outputPath)
	}

	return p.render(ctx, inputPath, outputPath, speech)
}

// extractAudio writes a 16-bit PCM wav next to the input for the
// transcription service.
func (p *Processor) extractAudio(ctx context.Context, inputPath string) (string, error) {
	audioPath := inputPath + ".wav"
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-y", audioPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: extract audio: %v", processor.ErrProcessing, err)
	}
	return audioPath, nil
}

func (p *Processor) render(ctx context.Context, inputPath, outputPath string, keep []processor.Segment) error {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
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
		return fmt.Errorf("%w: render: %v", processor.ErrProcessing, err)
	}
	return nil
}

func (p *Processor) copyStream(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", inputPath, "-c", "copy", "-y", outputPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: copy: %v", processor.ErrProcessing, err)
	}
	return nil
}

var _ processor.Processor = (*Processor)(nil)
