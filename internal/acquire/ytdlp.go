package acquire

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lrstanley/go-ytdlp"
)

// DefaultFormat prefers a native mp3 stream, then m4a, then any audio.
const DefaultFormat = "bestaudio[ext=mp3]/bestaudio[ext=m4a]/bestaudio/best[height<=480]"

// YtdlpOptions configures [YtdlpEngine].
type YtdlpOptions struct {
	Format       string
	Executable   string // yt-dlp binary; empty resolves it from PATH
	Transcode    bool   // run the extract-audio post processor (needs ffmpeg)
	AudioFormat  string // used with Transcode
	AudioQuality string // used with Transcode
}

// YtdlpEngine is the [MediaEngine] backed by the yt-dlp executable.
type YtdlpEngine struct {
	opts   YtdlpOptions
	logger *log.Logger
}

// NewYtdlpEngine creates an engine. Empty options fall back to [DefaultFormat] and mp3.
func NewYtdlpEngine(opts YtdlpOptions, logger *log.Logger) *YtdlpEngine {
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = "mp3"
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = "192K"
	}
	return &YtdlpEngine{opts: opts, logger: logger}
}

func (e *YtdlpEngine) command(req Request) *ytdlp.Command {
	cmd := ytdlp.New().
		Format(e.opts.Format).
		Output(req.OutputTemplate).
		NoPlaylist().
		Quiet().
		NoWarnings()

	if e.opts.Executable != "" {
		cmd = cmd.SetExecutable(e.opts.Executable)
	}

	if filter := req.Constraint.Filter(); filter != "" {
		cmd = cmd.MatchFilters(filter)
	}

	if e.opts.Transcode {
		cmd = cmd.ExtractAudio().
			AudioFormat(e.opts.AudioFormat).
			AudioQuality(e.opts.AudioQuality)
	}
	return cmd
}

// Fetch runs yt-dlp once for req.Source.
func (e *YtdlpEngine) Fetch(ctx context.Context, req Request) error {
	if e.logger != nil {
		e.logger.Debug("yt-dlp fetch", "source", req.Source, "filter", req.Constraint.Filter(), "output", req.OutputTemplate)
	}

	res, err := e.command(req).Run(ctx, req.Source)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	var output string
	if res != nil {
		output = strings.TrimSpace(res.Stderr)
	}
	if strings.Contains(output, "429") {
		err = fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return &EngineError{Source: req.Source, Output: lastLine(output), Original: err}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
