package upscale

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/resources"
	"github.com/recodarr/recodarr/internal/startup"
)

var (
	// ErrNoPlan is returned when the item carries no upscale plan.
	ErrNoPlan = errors.New("queue item has no upscale plan")
	// ErrSourceUnknown means the source could not be probed well enough to
	// size the frame pipeline.
	ErrSourceUnknown = errors.New("source dimensions or duration unknown")
	// ErrAlreadyHighRes means the source is close enough to the target that
	// upscaling would not pay off.
	ErrAlreadyHighRes = errors.New("source already near target resolution")
	// ErrInsufficientDiskSpace means the temp area cannot hold the extracted
	// and upscaled frames.
	ErrInsufficientDiskSpace = errors.New("insufficient disk space for frame extraction")
)

// frameProgressRe matches the per-frame "N/M" progress the upscaler binaries
// print on stderr.
var frameProgressRe = regexp.MustCompile(`(\d+)/(\d+)`)

// PreStage produces a lossless upscaled intermediate for queue items that
// carry a plan. Any failure is reported to the caller, which proceeds with
// the original source; the pre-stage never fails a job on its own.
type PreStage struct {
	cfg     config.UpscaleConfig
	tempDir string
	queue   repository.QueueRepository
	monitor *resources.Monitor
	prober  *probe.Prober
	tools   *ToolManager
	logger  *slog.Logger
}

// NewPreStage creates the pre-stage. tempDir is where working directories
// are created; empty means the OS temp area.
func NewPreStage(
	cfg config.UpscaleConfig,
	tempDir string,
	queue repository.QueueRepository,
	monitor *resources.Monitor,
	prober *probe.Prober,
	tools *ToolManager,
	logger *slog.Logger,
) *PreStage {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PreStage{
		cfg:     cfg,
		tempDir: tempDir,
		queue:   queue,
		monitor: monitor,
		prober:  prober,
		tools:   tools,
		logger:  logger.With(slog.String("component", "upscale")),
	}
}

// Prepare runs the full pipeline: probe, disk check, frame extraction,
// upscaling, reassembly. On success it returns the intermediate path and a
// cleanup that removes the working directory.
func (p *PreStage) Prepare(ctx context.Context, item *models.QueueItem) (string, func(), error) {
	plan := item.UpscalePlan
	if plan == nil {
		return "", nil, ErrNoPlan
	}
	logger := p.logger.With(
		slog.String("item_id", item.ID.String()),
		slog.String("file", item.FilePath),
		slog.String("upscaler", plan.UpscalerKey))

	specs, err := p.prober.Probe(ctx, item.FilePath)
	if err != nil || specs.Width <= 0 || specs.Height <= 0 || specs.Framerate <= 0 || specs.DurationSec <= 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrSourceUnknown, item.FilePath)
	}
	if plan.TargetHeight > 0 && float64(specs.Height) >= float64(plan.TargetHeight)*0.85 {
		return "", nil, fmt.Errorf("%w: %dp toward %dp", ErrAlreadyHighRes, specs.Height, plan.TargetHeight)
	}

	frames := int64(specs.DurationSec * specs.Framerate)
	if frames <= 0 {
		return "", nil, fmt.Errorf("%w: zero frame estimate", ErrSourceUnknown)
	}
	need := EstimateDiskNeed(frames, specs.Width, specs.Height, plan.Factor) + int64(p.cfg.DiskHeadroom)
	if p.monitor != nil {
		usage, err := p.monitor.Disk(ctx, p.tempDir)
		if err != nil {
			return "", nil, fmt.Errorf("checking temp area: %w", err)
		}
		if uint64(need) > usage.FreeBytes {
			return "", nil, fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientDiskSpace, need, usage.FreeBytes)
		}
	}

	binary, err := p.tools.BinaryPath(plan.UpscalerKey)
	if err != nil {
		return "", nil, err
	}

	workDir := filepath.Join(p.tempDir, startup.TempDirPrefix+uuid.NewString())
	framesIn := filepath.Join(workDir, "frames_in")
	framesOut := filepath.Join(workDir, "frames_out")
	for _, dir := range []string{framesIn, framesOut} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating working dir: %w", err)
		}
	}
	cleanup := func() { os.RemoveAll(workDir) }
	fail := func(err error) (string, func(), error) {
		cleanup()
		return "", nil, err
	}

	logger.Info("upscale pre-stage starting",
		slog.Int64("estimated_frames", frames),
		slog.Int("factor", plan.Factor),
		slog.String("work_dir", workDir))

	if err := p.extractFrames(ctx, item.FilePath, framesIn); err != nil {
		return fail(fmt.Errorf("extracting frames: %w", err))
	}
	if err := p.runUpscaler(ctx, binary, plan, framesIn, framesOut, item); err != nil {
		return fail(fmt.Errorf("upscaling frames: %w", err))
	}

	intermediate := filepath.Join(workDir, "upscaled.mkv")
	if err := p.reassemble(ctx, item.FilePath, framesOut, specs.Framerate, intermediate); err != nil {
		return fail(fmt.Errorf("reassembling: %w", err))
	}
	info, err := os.Stat(intermediate)
	if err != nil || info.Size() == 0 {
		return fail(fmt.Errorf("reassembly produced no output at %s", intermediate))
	}

	logger.Info("upscale pre-stage complete",
		slog.String("intermediate", intermediate),
		slog.Int64("bytes", info.Size()))
	return intermediate, cleanup, nil
}

// EstimateDiskNeed approximates the bytes the frame pipeline will occupy:
// source stills plus factor-squared upscaled stills at roughly 1.5 bytes per
// pixel of lossless PNG.
func EstimateDiskNeed(frames int64, width, height, factor int) int64 {
	if factor < 1 {
		factor = 1
	}
	perFrame := float64(width) * float64(height) * float64(factor*factor) * 1.5
	return int64(float64(frames) * perFrame)
}

func (p *PreStage) ffmpegBinary() string {
	if p.cfg.FFmpegPath != "" {
		return p.cfg.FFmpegPath
	}
	return "ffmpeg"
}

// extractFrames dumps every video frame as a numbered PNG.
func (p *PreStage) extractFrames(ctx context.Context, source, framesIn string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegBinary(),
		"-hide_banner", "-loglevel", "error",
		"-i", source,
		"-fps_mode", "passthrough",
		filepath.Join(framesIn, "frame_%08d.png"),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, firstLine(output))
	}
	entries, err := os.ReadDir(framesIn)
	if err != nil || len(entries) == 0 {
		return errors.New("no frames extracted")
	}
	return nil
}

// runUpscaler batch-processes the extracted frames, mapping the binary's
// N/M stderr progress onto the 10-90% span of the item.
func (p *PreStage) runUpscaler(ctx context.Context, binary string, plan *models.UpscalePlan, framesIn, framesOut string, item *models.QueueItem) error {
	cmd := exec.CommandContext(ctx, binary,
		"-i", framesIn,
		"-o", framesOut,
		"-n", plan.Model,
		"-s", strconv.Itoa(plan.Factor),
		"-f", "png",
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stderr)
	var lastPersist time.Time
	for scanner.Scan() {
		done, total, ok := ParseFrameProgress(scanner.Text())
		if !ok || total == 0 {
			continue
		}
		overall := 10 + 80*float64(done)/float64(total)
		if time.Since(lastPersist) < time.Second {
			continue
		}
		lastPersist = time.Now()
		if err := p.queue.UpdateProgress(ctx, item.ID, overall, item.ProcessCPUPercent, item.ProcessRSSMB); err != nil {
			p.logger.Debug("persisting upscale progress failed", slog.String("error", err.Error()))
		}
	}
	if err := cmd.Wait(); err != nil {
		return err
	}

	entries, err := os.ReadDir(framesOut)
	if err != nil || len(entries) == 0 {
		return errors.New("upscaler produced no frames")
	}
	return nil
}

// reassemble muxes the upscaled frames as a new lossless video stream while
// mapping the original audio and subtitle streams verbatim. The transcoder
// re-encodes afterwards, so FFV1 keeps the intermediate exact.
func (p *PreStage) reassemble(ctx context.Context, source, framesOut string, framerate float64, intermediate string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegBinary(),
		"-hide_banner", "-loglevel", "error",
		"-framerate", strconv.FormatFloat(framerate, 'f', -1, 64),
		"-i", filepath.Join(framesOut, "frame_%08d.png"),
		"-i", source,
		"-map", "0:v:0",
		"-map", "1:a?",
		"-map", "1:s?",
		"-c:v", "ffv1",
		"-c:a", "copy",
		"-c:s", "copy",
		intermediate,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, firstLine(output))
	}
	return nil
}

// ParseFrameProgress extracts "N/M" frame progress from an upscaler output
// line.
func ParseFrameProgress(line string) (done, total int, ok bool) {
	match := frameProgressRe.FindStringSubmatch(line)
	if match == nil {
		return 0, 0, false
	}
	done, err1 := strconv.Atoi(match[1])
	total, err2 := strconv.Atoi(match[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return done, total, true
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' || b == '\r' {
			return string(output[:i])
		}
	}
	return string(output)
}
