// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"errors"
	"testing"
)

func TestWizardHappyPath(t *testing.T) {
	w := NewWizard()
	if w.Step() != StepSession {
		t.Fatalf("fresh wizard at step %s, want session", w.Step())
	}
	if err := w.ChooseSession("sess-1"); err != nil {
		t.Fatalf("ChooseSession() error = %v", err)
	}
	if err := w.ChooseDirection(DirectionDownload); err != nil {
		t.Fatalf("ChooseDirection() error = %v", err)
	}
	if err := w.ChooseSource("/var/log/syslog"); err != nil {
		t.Fatalf("ChooseSource() error = %v", err)
	}
	if err := w.ChooseTarget("/home/deck/downloads"); err != nil {
		t.Fatalf("ChooseTarget() error = %v", err)
	}
	if w.Step() != StepConfirm {
		t.Fatalf("step before confirm = %s", w.Step())
	}

	spec, err := w.Confirm()
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	want := JobSpec{
		SessionID:  "sess-1",
		Direction:  DirectionDownload,
		SourcePath: "/var/log/syslog",
		TargetDir:  "/home/deck/downloads",
	}
	if spec != want {
		t.Errorf("spec = %+v, want %+v", spec, want)
	}
	if w.Step() != StepDone {
		t.Errorf("step after confirm = %s, want done", w.Step())
	}
}

func TestWizardRejectsOutOfOrderInput(t *testing.T) {
	w := NewWizard()
	if err := w.ChooseDirection(DirectionUpload); !errors.Is(err, ErrWrongStep) {
		t.Errorf("direction at session step: error = %v, want ErrWrongStep", err)
	}
	if err := w.ChooseTarget("/tmp"); !errors.Is(err, ErrWrongStep) {
		t.Errorf("target at session step: error = %v, want ErrWrongStep", err)
	}
	if _, err := w.Confirm(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("confirm at session step: error = %v, want ErrWrongStep", err)
	}
	if w.Step() != StepSession {
		t.Errorf("rejected input moved the wizard to %s", w.Step())
	}
}

func TestWizardValidatesInputs(t *testing.T) {
	w := NewWizard()
	if err := w.ChooseSession(""); err == nil {
		t.Error("empty session id accepted")
	}
	if err := w.ChooseSession("sess-1"); err != nil {
		t.Fatalf("ChooseSession() error = %v", err)
	}
	if err := w.ChooseDirection(Direction(42)); err == nil {
		t.Error("bogus direction accepted")
	}
	if err := w.ChooseDirection(DirectionUpload); err != nil {
		t.Fatalf("ChooseDirection() error = %v", err)
	}
	if err := w.ChooseSource(""); err == nil {
		t.Error("empty source accepted")
	}
}

func TestWizardBack(t *testing.T) {
	w := NewWizard()
	if err := w.ChooseSession("sess-1"); err != nil {
		t.Fatal(err)
	}
	if err := w.ChooseDirection(DirectionUpload); err != nil {
		t.Fatal(err)
	}
	w.Back()
	if w.Step() != StepDirection {
		t.Fatalf("step after back = %s, want direction", w.Step())
	}
	// The discarded choice can be re-made.
	if err := w.ChooseDirection(DirectionDownload); err != nil {
		t.Fatalf("re-choose after back: %v", err)
	}
	if w.Draft().Direction != DirectionDownload {
		t.Errorf("draft direction = %v, want download", w.Draft().Direction)
	}

	// Back on the first step stays put.
	fresh := NewWizard()
	fresh.Back()
	if fresh.Step() != StepSession {
		t.Errorf("back on first step moved to %s", fresh.Step())
	}
}
