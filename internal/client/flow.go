package client

import "time"

// Screen identifies one step of the auth flow.
type Screen string

const (
	ScreenWelcome        Screen = "welcome"
	ScreenLogin          Screen = "login"
	ScreenRegister       Screen = "register"
	ScreenVerifyOTP      Screen = "verify-otp"
	ScreenForgotPassword Screen = "forgot-password"
	ScreenResetPassword  Screen = "reset-password"
	ScreenSuccess        Screen = "success"
)

// SuccessRedirectDelay is how long the success screen lingers before an
// authenticated user is moved to their dashboard.
const SuccessRedirectDelay = 2 * time.Second

// FlowState is the payload carried across screens. Email, the reset flag and
// a pending password survive navigation so the flow needs no server round
// trip to rebuild context.
type FlowState struct {
	Email           string
	PendingPassword string
	ResetFlow       bool
	Message         string
	Session         *Session
}

// Patch is a partial FlowState. Nil fields are left untouched by Navigate,
// which is what lets each screen contribute only the keys it knows about.
type Patch struct {
	Email           *string
	PendingPassword *string
	ResetFlow       *bool
	Message         *string
	Session         *Session
	ClearSession    bool
}

// Flow is the client auth state machine: an active screen plus the carried
// payload. It is not safe for concurrent use; the UI drives it from a single
// goroutine.
type Flow struct {
	screen Screen
	state  FlowState
}

// NewFlow starts at the welcome screen with an empty payload. Welcome is the
// entry point offering the choice between signing in and registering.
func NewFlow() *Flow {
	return &Flow{screen: ScreenWelcome}
}

// Screen returns the active screen.
func (f *Flow) Screen() Screen {
	return f.screen
}

// State returns a copy of the carried payload.
func (f *Flow) State() FlowState {
	return f.state
}

// Navigate merges the patch into the carried payload and switches the active
// screen. The merge never replaces the payload wholesale.
func (f *Flow) Navigate(screen Screen, patch Patch) {
	if patch.Email != nil {
		f.state.Email = *patch.Email
	}
	if patch.PendingPassword != nil {
		f.state.PendingPassword = *patch.PendingPassword
	}
	if patch.ResetFlow != nil {
		f.state.ResetFlow = *patch.ResetFlow
	}
	if patch.Message != nil {
		f.state.Message = *patch.Message
	}
	if patch.Session != nil {
		f.state.Session = patch.Session
	}
	if patch.ClearSession {
		f.state.Session = nil
	}
	f.screen = screen
}

// Authenticated reports whether the flow carries a live session.
func (f *Flow) Authenticated() bool {
	return f.state.Session != nil && f.state.Session.Token != ""
}

// SuccessOutcome describes what the terminal success screen should do.
type SuccessOutcome struct {
	// AutoRedirect is true when the user is authenticated and should be
	// moved to RedirectPath after SuccessRedirectDelay. When false the
	// screen shows a manual sign-in affordance instead.
	AutoRedirect bool
	RedirectPath string
}

// SuccessOutcome branches the terminal screen on authentication state.
func (f *Flow) SuccessOutcome() SuccessOutcome {
	if !f.Authenticated() {
		return SuccessOutcome{}
	}
	return SuccessOutcome{
		AutoRedirect: true,
		RedirectPath: f.state.Session.User.Role.DashboardPath(),
	}
}

// String pointer helpers for building patches.
func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }
