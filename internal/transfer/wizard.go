// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"errors"
	"fmt"
)

// ErrWrongStep is returned when a wizard input does not match the step the
// wizard is on.
var ErrWrongStep = errors.New("input does not match current wizard step")

// Step names a position in the job-construction wizard.
type Step int

const (
	StepSession Step = iota
	StepDirection
	StepSource
	StepTarget
	StepConfirm
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepSession:
		return "session"
	case StepDirection:
		return "direction"
	case StepSource:
		return "source"
	case StepTarget:
		return "target"
	case StepConfirm:
		return "confirm"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// next is the wizard's transition function. The step order is fixed;
// inputs are validated by the Choose methods before advancing.
func next(s Step) Step {
	switch s {
	case StepSession:
		return StepDirection
	case StepDirection:
		return StepSource
	case StepSource:
		return StepTarget
	case StepTarget:
		return StepConfirm
	default:
		return StepDone
	}
}

// Wizard accumulates a JobSpec one step at a time. It holds no I/O handles
// and performs no path validation; browsing and existence checks belong to
// the caller, execution checks to the engine.
type Wizard struct {
	step Step
	spec JobSpec
}

func NewWizard() *Wizard {
	return &Wizard{step: StepSession}
}

// Step returns the step the wizard currently waits on.
func (w *Wizard) Step() Step { return w.step }

// Draft returns the job spec as filled in so far.
func (w *Wizard) Draft() JobSpec { return w.spec }

// ChooseSession records the session the job will run on.
func (w *Wizard) ChooseSession(sessionID string) error {
	if w.step != StepSession {
		return fmt.Errorf("%w: got session at step %s", ErrWrongStep, w.step)
	}
	if sessionID == "" {
		return errors.New("session id must not be empty")
	}
	w.spec.SessionID = sessionID
	w.step = next(w.step)
	return nil
}

// ChooseDirection records upload or download.
func (w *Wizard) ChooseDirection(d Direction) error {
	if w.step != StepDirection {
		return fmt.Errorf("%w: got direction at step %s", ErrWrongStep, w.step)
	}
	if d != DirectionUpload && d != DirectionDownload {
		return fmt.Errorf("unknown direction %d", d)
	}
	w.spec.Direction = d
	w.step = next(w.step)
	return nil
}

// ChooseSource records the file or directory to transfer. For an upload
// this is a local path, for a download a remote one.
func (w *Wizard) ChooseSource(path string) error {
	if w.step != StepSource {
		return fmt.Errorf("%w: got source at step %s", ErrWrongStep, w.step)
	}
	if path == "" {
		return errors.New("source path must not be empty")
	}
	w.spec.SourcePath = path
	w.step = next(w.step)
	return nil
}

// ChooseTarget records the directory the transfer lands in, on the opposite
// side of the source.
func (w *Wizard) ChooseTarget(dir string) error {
	if w.step != StepTarget {
		return fmt.Errorf("%w: got target at step %s", ErrWrongStep, w.step)
	}
	if dir == "" {
		return errors.New("target directory must not be empty")
	}
	w.spec.TargetDir = dir
	w.step = next(w.step)
	return nil
}

// Confirm finalizes the wizard and returns the completed spec.
func (w *Wizard) Confirm() (JobSpec, error) {
	if w.step != StepConfirm {
		return JobSpec{}, fmt.Errorf("%w: got confirm at step %s", ErrWrongStep, w.step)
	}
	w.step = StepDone
	return w.spec, nil
}

// Back returns to the previous step, discarding its recorded choice. On the
// first step it is a no-op.
func (w *Wizard) Back() {
	switch w.step {
	case StepDirection:
		w.spec.SessionID = ""
		w.step = StepSession
	case StepSource:
		w.spec.Direction = DirectionUpload
		w.step = StepDirection
	case StepTarget:
		w.spec.SourcePath = ""
		w.step = StepSource
	case StepConfirm:
		w.spec.TargetDir = ""
		w.step = StepTarget
	}
}
