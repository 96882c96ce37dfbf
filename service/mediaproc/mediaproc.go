// Package mediaproc shells out to ffmpeg for transcodes and resizes images
// in-process. Every produced file is a scoped temp file the caller releases.
package mediaproc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Veetaha/snowpity/service/logger"
)

// TempFile is a transcode output with guaranteed cleanup: Close removes the
// file and is safe to defer on every exit path.
type TempFile struct {
	Path string
}

func (t *TempFile) Close() error {
	if t.Path == "" {
		return nil
	}
	err := os.Remove(t.Path)
	t.Path = ""
	return err
}

// ErrTranscode is a failed ffmpeg invocation, carrying the full command line
// and captured stderr for diagnosis.
type ErrTranscode struct {
	Args   []string
	Stderr string
	Err    error
}

func (e ErrTranscode) Error() string {
	return fmt.Sprintf("transcode failed: %s: %s (command: ffmpeg %s)", e.Err, e.Stderr, strings.Join(e.Args, " "))
}

func (e ErrTranscode) Unwrap() error {
	return e.Err
}

// GifToMP4 transcodes an animated GIF into a soundless web-playable mp4.
// Dimensions are rounded down to even integers as H.264 requires.
func GifToMP4(ctx context.Context, gifPath string) (*TempFile, error) {
	return transcode(ctx, gifPath,
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-an",
	)
}

// WebmToMP4 transcodes a WebM into an mp4, re-encoding audio as AAC.
func WebmToMP4(ctx context.Context, webmPath string) (*TempFile, error) {
	return transcode(ctx, webmPath,
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-c:a", "aac",
	)
}

func transcode(ctx context.Context, inPath string, encodeArgs ...string) (*TempFile, error) {
	out, err := os.CreateTemp("", "transcode-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("creating transcode output file: %w", err)
	}
	outPath := out.Name()
	out.Close()

	args := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", inPath}, encodeArgs...)
	args = append(args, outPath)

	logger.For(ctx).Debugf("running ffmpeg %s", strings.Join(args, " "))

	// CommandContext kills the child when the context is dropped; stdin stays
	// closed so a confused ffmpeg cannot block on input.
	c := exec.CommandContext(ctx, "ffmpeg", args...)
	errBuf := new(bytes.Buffer)
	c.Stderr = errBuf

	if err := c.Run(); err != nil {
		os.Remove(outPath)
		return nil, ErrTranscode{Args: args, Stderr: strings.TrimSpace(errBuf.String()), Err: err}
	}

	return &TempFile{Path: outPath}, nil
}
