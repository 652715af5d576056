package encoder

import (
	"fmt"
	"syscall"
)

// PauseStrategy suspends and resumes a running transcoder child. The signal
// strategy is used wherever SIGSTOP/SIGCONT exist; platforms without them
// would need a strategy that checkpoints by stopping the child and requeueing
// the item, which is not implemented here.
type PauseStrategy interface {
	Pause(pid int) error
	Resume(pid int) error
	Name() string
}

// signalStrategy freezes the child in place with SIGSTOP and thaws it with
// SIGCONT. No transcoder state is lost either way.
type signalStrategy struct{}

// NewSignalPauseStrategy returns the SIGSTOP/SIGCONT pause strategy.
func NewSignalPauseStrategy() PauseStrategy {
	return signalStrategy{}
}

func (signalStrategy) Pause(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGSTOP); err != nil {
		return fmt.Errorf("sending SIGSTOP to %d: %w", pid, err)
	}
	return nil
}

func (signalStrategy) Resume(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGCONT); err != nil {
		return fmt.Errorf("sending SIGCONT to %d: %w", pid, err)
	}
	return nil
}

func (signalStrategy) Name() string { return "signal" }
