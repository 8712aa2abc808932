package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"messmate/internal/model"
)

func TestFlow_StartsAtWelcome(t *testing.T) {
	f := NewFlow()
	assert.Equal(t, ScreenWelcome, f.Screen())
	assert.False(t, f.Authenticated())

	// Welcome branches into the two entry paths with no payload yet.
	f.Navigate(ScreenLogin, Patch{})
	assert.Equal(t, ScreenLogin, f.Screen())
	assert.Equal(t, FlowState{}, f.State())

	g := NewFlow()
	g.Navigate(ScreenRegister, Patch{})
	assert.Equal(t, ScreenRegister, g.Screen())
}

func TestFlow_NavigateMergesPatch(t *testing.T) {
	f := NewFlow()

	f.Navigate(ScreenVerifyOTP, Patch{
		Email:           String("alice@example.com"),
		PendingPassword: String("secret123"),
	})
	assert.Equal(t, ScreenVerifyOTP, f.Screen())
	assert.Equal(t, "alice@example.com", f.State().Email)
	assert.Equal(t, "secret123", f.State().PendingPassword)

	// A later patch touching only one field leaves the rest intact.
	f.Navigate(ScreenSuccess, Patch{Message: String("Account verified")})
	assert.Equal(t, "alice@example.com", f.State().Email)
	assert.Equal(t, "secret123", f.State().PendingPassword)
	assert.Equal(t, "Account verified", f.State().Message)
}

func TestFlow_ResetFlagSurvivesNavigation(t *testing.T) {
	f := NewFlow()

	f.Navigate(ScreenForgotPassword, Patch{Email: String("alice@example.com")})
	f.Navigate(ScreenVerifyOTP, Patch{ResetFlow: Bool(true)})
	f.Navigate(ScreenResetPassword, Patch{})

	assert.True(t, f.State().ResetFlow)
	assert.Equal(t, "alice@example.com", f.State().Email)
}

func TestFlow_SuccessBranchesOnAuthentication(t *testing.T) {
	f := NewFlow()

	// Not authenticated: manual sign-in affordance, no redirect.
	f.Navigate(ScreenSuccess, Patch{Message: String("Password reset successfully")})
	outcome := f.SuccessOutcome()
	assert.False(t, outcome.AutoRedirect)
	assert.Empty(t, outcome.RedirectPath)

	// Authenticated: auto-redirect to the role dashboard.
	f.Navigate(ScreenSuccess, Patch{Session: &Session{
		Token: "token",
		User:  model.User{ID: 1, Role: model.RoleMessOwner},
	}})
	outcome = f.SuccessOutcome()
	assert.True(t, outcome.AutoRedirect)
	assert.Equal(t, "/mess-owner/dashboard", outcome.RedirectPath)
}

func TestFlow_ClearSessionLogsOut(t *testing.T) {
	f := NewFlow()
	f.Navigate(ScreenSuccess, Patch{Session: &Session{Token: "token"}})
	assert.True(t, f.Authenticated())

	f.Navigate(ScreenLogin, Patch{ClearSession: true})
	assert.False(t, f.Authenticated())
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := t.TempDir() + "/session.json"
	store := NewFileStore(path)

	loaded, err := store.Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	session := &Session{
		Token: "token-123",
		User:  model.User{ID: 7, Email: "alice@example.com", Role: model.RoleUser},
	}
	assert.NoError(t, store.Save(session))

	loaded, err = store.Load()
	assert.NoError(t, err)
	assert.Equal(t, "token-123", loaded.Token)
	assert.Equal(t, uint(7), loaded.User.ID)

	assert.NoError(t, store.Clear())
	loaded, err = store.Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}
