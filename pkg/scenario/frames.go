package scenario

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"reelscope/pkg/logger"
)

// FFmpegFrameSource downloads a video and samples JPEG frames from it
// with the ffmpeg binary. Each call works in its own temp directory and
// cleans up after itself.
type FFmpegFrameSource struct {
	httpClient *http.Client
	ffmpegPath string
	maxFrames  int
	logger     logger.Logger
}

// NewFFmpegFrameSource creates a frame source. It fails when no ffmpeg
// binary is found on PATH.
func NewFFmpegFrameSource(maxFrames int, log logger.Logger) (*FFmpegFrameSource, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	return &FFmpegFrameSource{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ffmpegPath: path,
		maxFrames:  maxFrames,
		logger:     log,
	}, nil
}

// Frames downloads the video and extracts up to maxFrames evenly
// sampled JPEG frames
func (f *FFmpegFrameSource) Frames(ctx context.Context, videoURL string) ([][]byte, error) {
	workDir, err := os.MkdirTemp("", "reelscope-frames-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "video.mp4")
	if err := f.download(ctx, videoURL, videoPath); err != nil {
		return nil, err
	}

	// One frame every two seconds, bounded by maxFrames
	pattern := filepath.Join(workDir, "frame_%03d.jpg")
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-i", videoPath,
		"-vf", "fps=1/2,scale='min(1920,iw)':-2",
		"-frames:v", fmt.Sprintf("%d", f.maxFrames),
		"-q:v", "2",
		"-y", pattern,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		f.logger.ErrorWithFields("frame extraction failed", map[string]interface{}{
			"error":  err.Error(),
			"output": truncate(string(out), 300),
		})
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(workDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	sort.Strings(matches)

	frames := make([][]byte, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		frames = append(frames, data)
	}

	f.logger.DebugWithFields("extracted video frames", map[string]interface{}{
		"url":    videoURL,
		"frames": len(frames),
	})

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted")
	}
	return frames, nil
}

func (f *FFmpegFrameSource) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create video file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write video file: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
