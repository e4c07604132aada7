package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/At4lian/VQCC/internal/models"
)

// Runner executes an external tool and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// FFAnalyzer answers the requested checks with ffprobe and ffmpeg's
// loudnorm filter.
type FFAnalyzer struct {
	ffprobe string
	ffmpeg  string
	timeout time.Duration
	run     Runner
}

func NewFFAnalyzer(ffprobePath, ffmpegPath string, timeout time.Duration) *FFAnalyzer {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &FFAnalyzer{ffprobe: ffprobePath, ffmpeg: ffmpegPath, timeout: timeout, run: execRunner}
}

// WithRunner replaces process execution.
func (a *FFAnalyzer) WithRunner(run Runner) *FFAnalyzer {
	a.run = run
	return a
}

type streamInfo struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		BitRate      string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

func (a *FFAnalyzer) Analyze(ctx context.Context, path string, checks []models.CheckKind) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out := make(map[string]any, len(checks))
	var info *streamInfo

	for _, check := range checks {
		switch check {
		case models.CheckResolution, models.CheckFPS, models.CheckBitrate:
			if info == nil {
				p, err := a.inspect(ctx, path)
				if err != nil {
					return nil, err
				}
				info = p
			}
			out[string(check)] = streamCheck(info, check)
		case models.CheckAvgLoudness:
			loud, err := a.loudness(ctx, path)
			if err != nil {
				return nil, err
			}
			out[string(check)] = loud
		default:
			return nil, fmt.Errorf("unsupported check %s", check)
		}
	}
	return out, nil
}

func (a *FFAnalyzer) inspect(ctx context.Context, path string) (*streamInfo, error) {
	stdout, stderr, err := a.run(ctx, a.ffprobe, "-v", "error", "-show_streams", "-show_format", "-print_format", "json", path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, clip(stderr, 500))
	}
	var p streamInfo
	if err := json.Unmarshal(stdout, &p); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	return &p, nil
}

func streamCheck(p *streamInfo, check models.CheckKind) map[string]any {
	var (
		width, height int
		fps           *float64
		streamRate    string
	)
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		width, height = s.Width, s.Height
		fps = parseFraction(s.AvgFrameRate)
		if fps == nil {
			fps = parseFraction(s.RFrameRate)
		}
		streamRate = s.BitRate
		break
	}

	switch check {
	case models.CheckResolution:
		return map[string]any{"width": width, "height": height}
	case models.CheckFPS:
		return map[string]any{"value": fps}
	default:
		raw := p.Format.BitRate
		if raw == "" {
			raw = streamRate
		}
		bps, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || bps <= 0 {
			return map[string]any{"bps": nil, "kbps": nil}
		}
		return map[string]any{"bps": bps, "kbps": float64(bps) / 1000}
	}
}

func parseFraction(s string) *float64 {
	if s == "" || s == "0/0" {
		return nil
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil
	}
	if found {
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return nil
		}
		n /= d
	}
	return &n
}

func (a *FFAnalyzer) loudness(ctx context.Context, path string) (map[string]any, error) {
	_, stderr, err := a.run(ctx, a.ffmpeg, "-hide_banner", "-nostats", "-i", path, "-af", "loudnorm=print_format=json", "-f", "null", "-")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg loudnorm failed: %w: %s", err, clip(stderr, 800))
	}
	return parseLoudnorm(stderr)
}

// parseLoudnorm extracts the JSON block loudnorm prints at the end of
// ffmpeg's stderr.
func parseLoudnorm(stderr []byte) (map[string]any, error) {
	start := bytes.LastIndexByte(stderr, '{')
	end := bytes.LastIndexByte(stderr, '}')
	if start < 0 || end < start {
		return nil, errors.New("no loudnorm output found")
	}
	var data map[string]any
	if err := json.Unmarshal(stderr[start:end+1], &data); err != nil {
		return nil, fmt.Errorf("decode loudnorm output: %w", err)
	}
	return data, nil
}

func clip(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
