package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/tetratelabs/wazero"
)

// ErrTranscodeFailed reports that audio extraction could not produce an
// mp3 stream.
var ErrTranscodeFailed = errors.New("transcode failed")

// Transcoder converts media streams to mp3. It runs the ffmpeg binary
// when one is installed and falls back to the embedded WASM build
// otherwise, so audio extraction works on hosts without ffmpeg.
type Transcoder struct{}

func NewTranscoder() *Transcoder {
	return &Transcoder{}
}

// FFmpegAvailable checks if ffmpeg is installed and available in PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// transcodeArgs builds the mp3 extraction arguments. Output is stereo
// 44.1kHz at 128kbps with video streams stripped.
func transcodeArgs(input, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-ac", "2",
		"-ar", "44100",
		"-b:a", "128k",
		"-f", "mp3",
		output,
	}
}

// ToMP3 reads media from src and writes an mp3 stream to dst.
func (t *Transcoder) ToMP3(ctx context.Context, src io.Reader, dst io.Writer) error {
	if FFmpegAvailable() {
		return t.execToMP3(ctx, src, dst)
	}
	return t.wasmToMP3(ctx, src, dst)
}

// execToMP3 pipes the source through the installed ffmpeg binary
// without touching disk.
func (t *Transcoder) execToMP3(ctx context.Context, src io.Reader, dst io.Writer) error {
	args := transcodeArgs("pipe:0", "pipe:1")
	log.Printf("[ffmpeg] command: ffmpeg %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdin = src
	cmd.Stdout = dst

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[ffmpeg] ERROR: %v\n%s", err, stderr.String())
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	return nil
}

// saveMP3 transcodes src into a freshly created file at path. The
// partial file is removed when the transcode fails.
func saveMP3(ctx context.Context, t *Transcoder, src io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}

	if err := t.ToMP3(ctx, src, out); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// wasmToMP3 converts via the embedded ffmpeg WASM build. The WASM
// filesystem only sees mounted directories, so the stream is spooled
// through a temp dir.
func (t *Transcoder) wasmToMP3(ctx context.Context, src io.Reader, dst io.Writer) error {
	workDir, err := os.MkdirTemp("", "transcode-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.media")
	outputPath := filepath.Join(workDir, "output.mp3")

	inputFile, err := os.Create(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	if _, err := io.Copy(inputFile, src); err != nil {
		inputFile.Close()
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	inputFile.Close()

	log.Printf("[ffmpeg] converting with embedded ffmpeg")

	args := wasm.Args{
		Stderr: io.Discard,
		Stdout: io.Discard,
		Args:   transcodeArgs(inputPath, outputPath),
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			return cfg.WithFSConfig(wazero.NewFSConfig().
				WithDirMount(workDir, workDir))
		},
	}

	rc, err := ffmpreg.Ffmpeg(ctx, args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	if rc != 0 {
		return fmt.Errorf("%w: ffmpeg exited with code %d", ErrTranscodeFailed, rc)
	}

	outputFile, err := os.Open(outputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	defer outputFile.Close()

	if _, err := io.Copy(dst, outputFile); err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	return nil
}
