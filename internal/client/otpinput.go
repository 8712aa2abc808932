package client

import (
	"errors"
	"strings"
)

// Defaults for the entry widget.
const (
	OTPCells              = 6
	DefaultResendCooldown = 60 // seconds
	DefaultMaxOTPAttempts = 3
)

var (
	// ErrSubmissionLocked is returned once the attempt cap is reached.
	ErrSubmissionLocked = errors.New("too many failed attempts")
	// ErrIncompleteCode is returned when not all six cells are filled.
	ErrIncompleteCode = errors.New("enter the full 6-digit code")
	// ErrSubmitInFlight is returned while a verify call is outstanding.
	ErrSubmitInFlight = errors.New("submission already in progress")
)

// OTPInput models the six-cell code entry widget: cell contents, focus,
// resend cooldown and the client-side attempt cap. It mirrors what a UI
// renders; all rules live here so the presentation layer stays dumb.
type OTPInput struct {
	cells [OTPCells]string
	focus int

	cooldownSecs  int
	remainingSecs int

	maxAttempts int
	attempts    int

	submitting bool
}

// NewOTPInput builds a widget model. Zero or negative arguments fall back to
// the defaults. The cooldown starts running immediately: a code was just
// sent to get the user onto this screen.
func NewOTPInput(cooldownSecs, maxAttempts int) *OTPInput {
	if cooldownSecs <= 0 {
		cooldownSecs = DefaultResendCooldown
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxOTPAttempts
	}
	return &OTPInput{
		cooldownSecs:  cooldownSecs,
		remainingSecs: cooldownSecs,
		maxAttempts:   maxAttempts,
	}
}

// Cells returns the current cell contents.
func (w *OTPInput) Cells() [OTPCells]string {
	return w.cells
}

// Focus returns the index of the focused cell.
func (w *OTPInput) Focus() int {
	return w.focus
}

// Code concatenates the cells.
func (w *OTPInput) Code() string {
	return strings.Join(w.cells[:], "")
}

// Complete reports whether all six cells hold a digit.
func (w *OTPInput) Complete() bool {
	for _, c := range w.cells {
		if c == "" {
			return false
		}
	}
	return true
}

// TypeDigit stores a digit in the focused cell and advances focus. Focus
// stays on the last cell rather than running past it. Non-digits are ignored.
func (w *OTPInput) TypeDigit(r rune) {
	if r < '0' || r > '9' {
		return
	}
	w.cells[w.focus] = string(r)
	if w.focus < OTPCells-1 {
		w.focus++
	}
}

// Backspace on an empty cell moves focus back and clears that cell; on a
// non-empty cell it clears in place without moving.
func (w *OTPInput) Backspace() {
	if w.cells[w.focus] == "" {
		if w.focus > 0 {
			w.focus--
			w.cells[w.focus] = ""
		}
		return
	}
	w.cells[w.focus] = ""
}

// Paste strips non-digits from the pasted text and, when exactly six digits
// remain, fills all cells at once and focuses the last one. Anything else is
// ignored and Paste reports false.
func (w *OTPInput) Paste(text string) bool {
	var digits []rune
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) != OTPCells {
		return false
	}
	for i, d := range digits {
		w.cells[i] = string(d)
	}
	w.focus = OTPCells - 1
	return true
}

func (w *OTPInput) clear() {
	w.cells = [OTPCells]string{}
	w.focus = 0
}

// Tick advances the resend countdown by one second.
func (w *OTPInput) Tick() {
	if w.remainingSecs > 0 {
		w.remainingSecs--
	}
}

// ResendRemaining returns the seconds left on the resend cooldown.
func (w *OTPInput) ResendRemaining() int {
	return w.remainingSecs
}

// CanResend reports whether the cooldown has elapsed.
func (w *OTPInput) CanResend() bool {
	return w.remainingSecs == 0
}

// Resend restarts the cooldown and clears all cells; the old code is about
// to be invalidated server-side. It reports false while the cooldown is
// still running.
func (w *OTPInput) Resend() bool {
	if !w.CanResend() {
		return false
	}
	w.remainingSecs = w.cooldownSecs
	w.clear()
	return true
}

// Remount resets the widget to its initial state. The countdown restarts at
// full rather than resuming where the unmounted timer stopped.
func (w *OTPInput) Remount() {
	w.remainingSecs = w.cooldownSecs
	w.attempts = 0
	w.submitting = false
	w.clear()
}

// Attempts returns the number of failed submissions so far.
func (w *OTPInput) Attempts() int {
	return w.attempts
}

// Locked reports whether the client-side attempt cap has been reached. The
// server stays authoritative; this only stops obviously futile submissions.
func (w *OTPInput) Locked() bool {
	return w.attempts >= w.maxAttempts
}

// Submit runs verify with the entered code. A locked widget, an incomplete
// code, or an outstanding submission refuses without calling verify. On
// failure the cells are cleared and focus returns to the first cell, so a
// partially-wrong code is never left visible for resubmission.
func (w *OTPInput) Submit(verify func(code string) error) error {
	if w.Locked() {
		return ErrSubmissionLocked
	}
	if w.submitting {
		return ErrSubmitInFlight
	}
	if !w.Complete() {
		return ErrIncompleteCode
	}

	w.submitting = true
	err := verify(w.Code())
	w.submitting = false

	if err != nil {
		w.attempts++
		w.clear()
		return err
	}
	return nil
}
