package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"
)

var commandContext = exec.CommandContext

// stderrTailLimit caps how much engine stderr an error message carries.
const stderrTailLimit = 1024

// Option configures the demucs adapter.
type Option func(*Demucs)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(d *Demucs) {
		if binary != "" {
			d.binary = binary
		}
	}
}

// WithCatalog replaces the shipped model catalog.
func WithCatalog(catalog Catalog) Option {
	return func(d *Demucs) {
		d.catalog = catalog
	}
}

// Demucs invokes the demucs command-line separator.
type Demucs struct {
	binary  string
	catalog Catalog
}

// NewDemucs constructs the adapter with defaults.
func NewDemucs(opts ...Option) *Demucs {
	d := &Demucs{binary: "demucs", catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Catalog returns the models this adapter accepts.
func (d *Demucs) Catalog() Catalog {
	return d.catalog
}

// Separate runs one two-stem separation. It blocks until the engine exits.
func (d *Demucs) Separate(ctx context.Context, req SeparationRequest) error {
	args, err := buildArgs(req)
	if err != nil {
		return err
	}
	if err := checkPaths(req); err != nil {
		return err
	}

	cmd := commandContext(ctx, d.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			return fmt.Errorf("%w: %s: %s", ErrEngine, err, tail)
		}
		return fmt.Errorf("%w: %s", ErrEngine, err)
	}
	return nil
}

func buildArgs(req SeparationRequest) ([]string, error) {
	if req.Bitrate <= 0 || req.Bitrate >= 320 {
		return nil, fmt.Errorf("%w: bitrate %d outside (0, 320)", ErrInvalidArgs, req.Bitrate)
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("%w: model is empty", ErrInvalidArgs)
	}
	if req.Jobs <= 0 {
		return nil, fmt.Errorf("%w: jobs must be positive, got %d", ErrInvalidArgs, req.Jobs)
	}
	if strings.TrimSpace(req.InputPath) == "" || strings.TrimSpace(req.OutputDir) == "" {
		return nil, fmt.Errorf("%w: input path and output directory are required", ErrInvalidArgs)
	}

	return []string{
		"--mp3",
		"--mp3-bitrate=" + strconv.Itoa(req.Bitrate),
		"--two-stems=vocals",
		"-n", req.Model,
		"-j", strconv.Itoa(req.Jobs),
		"-o", req.OutputDir,
		req.InputPath,
	}, nil
}

func checkPaths(req SeparationRequest) error {
	info, err := os.Stat(req.InputPath)
	if err != nil {
		return fmt.Errorf("%w: input file: %s", ErrEngine, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: input %s is not a regular file", ErrEngine, req.InputPath)
	}

	info, err = os.Stat(req.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output directory: %s", ErrEngine, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: output path %s is not a directory", ErrEngine, req.OutputDir)
	}
	return nil
}

func stderrTail(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > stderrTailLimit {
		cut := len(trimmed) - stderrTailLimit
		// Never cut through a multi-byte rune.
		for cut < len(trimmed) && !utf8.RuneStart(trimmed[cut]) {
			cut++
		}
		trimmed = trimmed[cut:]
	}
	return trimmed
}

var _ Engine = (*Demucs)(nil)
