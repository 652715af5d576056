package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/resources"
)

// progressRe matches the transcoder's progress lines, e.g.
// "Encoding: task 1 of 2, 42.51 %".
var progressRe = regexp.MustCompile(`Encoding: task \d+ of \d+, ([\d.]+) %`)

// PreStage optionally produces an intermediate input file before the
// transcoder runs. Cleanup removes its working directory and must be called
// after finalisation, success or failure.
type PreStage interface {
	Prepare(ctx context.Context, item *models.QueueItem) (inputPath string, cleanup func(), err error)
}

// Supervisor owns one queue item from claim to terminal state.
type Supervisor struct {
	cfg       config.EncoderConfig
	item      *models.QueueItem
	profile   *models.Profile
	queue     repository.QueueRepository
	finalizer *Finalizer
	monitor   *resources.Monitor
	detector  *HWAccelDetector
	pause     PauseStrategy
	prestage  PreStage
	sample    time.Duration
	logger    *slog.Logger

	// transcoder receives the child's raw output lines when set.
	transcoder *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	paused   bool
	stopping bool
	progress float64
}

// NewSupervisor creates a supervisor for one claimed item. prestage may be
// nil when no upscale pre-stage is configured.
func NewSupervisor(
	cfg config.EncoderConfig,
	item *models.QueueItem,
	profile *models.Profile,
	queue repository.QueueRepository,
	finalizer *Finalizer,
	monitor *resources.Monitor,
	detector *HWAccelDetector,
	pause PauseStrategy,
	prestage PreStage,
	sampleInterval time.Duration,
	logger *slog.Logger,
) *Supervisor {
	if pause == nil {
		pause = NewSignalPauseStrategy()
	}
	if sampleInterval <= 0 {
		sampleInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:       cfg,
		item:      item,
		profile:   profile,
		queue:     queue,
		finalizer: finalizer,
		monitor:   monitor,
		detector:  detector,
		pause:     pause,
		prestage:  prestage,
		sample:    sampleInterval,
		logger: logger.With(
			slog.String("component", "encoder"),
			slog.String("item_id", item.ID.String()),
			slog.String("file", item.FilePath)),
	}
}

// WithTranscoderLog routes the child's raw output lines to the given
// logger, typically the dedicated transcoder log file.
func (s *Supervisor) WithTranscoderLog(logger *slog.Logger) *Supervisor {
	s.transcoder = logger
	return s
}

// Run executes the job to a terminal state. The item must already be in
// processing state (claimed).
func (s *Supervisor) Run(ctx context.Context) error {
	input := s.item.FilePath
	if s.item.UpscalePlan != nil && s.prestage != nil {
		intermediate, cleanup, err := s.prestage.Prepare(ctx, s.item)
		if err != nil {
			// The pre-stage is best effort; encode the original instead.
			s.logger.Warn("upscale pre-stage failed, using original source",
				slog.String("error", err.Error()))
		} else {
			input = intermediate
			defer cleanup()
		}
	}

	binary := s.cfg.BinaryPath
	if binary == "" {
		binary = "HandBrakeCLI"
	}
	encoderName := s.detector.SelectEncoder(ctx, s.profile, s.cfg.HWAccelPriority)
	output := OutputPath(s.item.FilePath, s.profile.Container)
	args := NewCommandBuilder(s.profile, s.item.CurrentSpecs, encoderName, input, output).Build()

	s.logger.Info("starting transcode",
		slog.String("encoder", encoderName),
		slog.String("output", output))

	pr, pw, err := os.Pipe()
	if err != nil {
		return s.failed(ctx, fmt.Sprintf("creating output pipe: %v", err))
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return s.failed(ctx, fmt.Sprintf("starting transcoder: %v", err))
	}
	pw.Close()

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	if s.cfg.NiceLevel != 0 {
		if err := syscall.Setpriority(syscall.PRIO_PROCESS, cmd.Process.Pid, s.cfg.NiceLevel); err != nil {
			s.logger.Debug("setting process priority failed", slog.String("error", err.Error()))
		}
	}

	monitorDone := make(chan struct{})
	monitorExited := make(chan struct{})
	go func() {
		defer close(monitorExited)
		s.monitorLoop(ctx, cmd.Process.Pid, monitorDone)
	}()

	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopWatch:
		}
	}()

	s.scanProgress(ctx, pr)
	pr.Close()
	waitErr := cmd.Wait()
	close(stopWatch)

	// Join the monitor before finalisation. An in-flight sample must not
	// write progress or process stats after the item turns terminal.
	close(monitorDone)
	<-monitorExited

	s.mu.Lock()
	stopped := s.stopping
	s.mu.Unlock()

	if stopped {
		return s.failed(context.WithoutCancel(ctx), "Manually stopped")
	}
	if waitErr != nil {
		code := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return s.failed(ctx, fmt.Sprintf("transcoder exited with code %d", code))
	}

	if err := s.finalizer.Finalize(ctx, s.item, s.profile, output); err != nil {
		return err
	}
	return nil
}

// Stop requests a graceful shutdown: terminate, wait up to the configured
// timeout, then kill. Run marks the item failed with "Manually stopped".
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopping || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	proc := s.cmd.Process
	if s.paused {
		// A stopped process ignores SIGTERM until it is continued.
		_ = s.pause.Resume(proc.Pid)
		s.paused = false
	}
	s.mu.Unlock()

	timeout := s.cfg.StopTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	_ = proc.Signal(syscall.SIGTERM)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = proc.Kill()
}

// Progress returns the last parsed progress percentage.
func (s *Supervisor) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// scanProgress reads the child's combined output and persists progress,
// coalesced so writes happen at most about once per second.
func (s *Supervisor) scanProgress(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanCRLF)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var lastPersist time.Time
	for scanner.Scan() {
		line := scanner.Text()
		if s.transcoder != nil && line != "" {
			s.transcoder.Info(line, slog.String("file", s.item.FilePath))
		}
		value, ok := ParseProgress(line)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.progress = value
		s.mu.Unlock()

		if time.Since(lastPersist) < time.Second {
			continue
		}
		lastPersist = time.Now()
		if err := s.queue.UpdateProgress(ctx, s.item.ID, value, s.item.ProcessCPUPercent, s.item.ProcessRSSMB); err != nil {
			s.logger.Debug("persisting progress failed", slog.String("error", err.Error()))
		}
	}
}

// monitorLoop samples host and child utilisation every interval, pausing
// and resuming the child as thresholds flip.
func (s *Supervisor) monitorLoop(ctx context.Context, pid int, done <-chan struct{}) {
	ticker := time.NewTicker(s.sample)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		snap := s.monitor.Snapshot(ctx)
		decision := s.monitor.Check(snap)
		s.applyDecision(ctx, pid, decision)

		if stats, err := s.monitor.Process(ctx, int32(pid)); err == nil && stats != nil {
			s.mu.Lock()
			s.item.ProcessCPUPercent = stats.CPUPercent
			s.item.ProcessRSSMB = stats.RSSMB
			progress := s.progress
			s.mu.Unlock()
			if err := s.queue.UpdateProgress(ctx, s.item.ID, progress, stats.CPUPercent, stats.RSSMB); err != nil {
				s.logger.Debug("persisting process stats failed", slog.String("error", err.Error()))
			}
		}
	}
}

// applyDecision pauses or resumes the child to match the throttle verdict.
func (s *Supervisor) applyDecision(ctx context.Context, pid int, decision resources.Decision) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	paused := s.paused
	s.mu.Unlock()

	switch {
	case decision.ShouldPause && !paused:
		if err := s.pause.Pause(pid); err != nil {
			s.logger.Warn("pausing transcoder failed", slog.String("error", err.Error()))
			return
		}
		s.mu.Lock()
		s.paused = true
		s.item.MarkPaused(decision.Reason)
		s.mu.Unlock()
		if err := s.queue.Update(ctx, s.item); err != nil {
			s.logger.Warn("persisting paused state failed", slog.String("error", err.Error()))
		}
		s.logger.Info("transcode paused", slog.String("reason", decision.Reason))

	case !decision.ShouldPause && paused:
		if err := s.pause.Resume(pid); err != nil {
			s.logger.Warn("resuming transcoder failed", slog.String("error", err.Error()))
			return
		}
		s.mu.Lock()
		s.paused = false
		s.item.MarkResumed()
		s.mu.Unlock()
		if err := s.queue.Update(ctx, s.item); err != nil {
			s.logger.Warn("persisting resumed state failed", slog.String("error", err.Error()))
		}
		s.logger.Info("transcode resumed")
	}
}

// failed marks the item failed and returns the reason as an error.
func (s *Supervisor) failed(ctx context.Context, reason string) error {
	s.item.MarkFailed(reason)
	if err := s.queue.Update(ctx, s.item); err != nil {
		return fmt.Errorf("marking item failed after %q: %w", reason, err)
	}
	s.logger.Error("transcode failed", slog.String("reason", reason))
	return fmt.Errorf("%s", reason)
}

// ParseProgress extracts the percentage from a transcoder progress line.
func ParseProgress(line string) (float64, bool) {
	match := progressRe.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// scanCRLF splits on both \n and \r, since the transcoder rewrites its
// progress line in place with carriage returns.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
