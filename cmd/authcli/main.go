// Command authcli is a terminal client for the auth API. It drives the same
// flow state machine and OTP entry model the UI uses, which makes it a handy
// smoke test against a running server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"messmate/internal/client"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	baseURL := os.Getenv("MESSMATE_API")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	api := client.New(baseURL)
	store := client.NewFileStore(sessionPath())
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "register":
		err = register(ctx, api, store)
	case "login":
		err = login(ctx, api, store)
	case "forgot":
		err = forgot(ctx, api)
	case "me":
		err = me(ctx, api, store)
	case "logout":
		err = store.Clear()
		if err == nil {
			fmt.Println("Logged out.")
		}
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authcli <register|login|forgot|me|logout>")
}

func sessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".messmate-session.json"
	}
	return filepath.Join(home, ".messmate", "session.json")
}

func prompt(label string) string {
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func register(ctx context.Context, api *client.Client, store client.SessionStore) error {
	flow := client.NewFlow()

	name := prompt("Name")
	email := prompt("Email")
	password, err := promptPassword("Password")
	if err != nil {
		return err
	}

	if _, err := api.Register(ctx, client.RegisterParams{
		Name: name, Email: email, Password: password,
	}); err != nil {
		if apiErr, ok := err.(*client.APIError); ok && apiErr.Code == "DUPLICATE_001" {
			fmt.Println("This email is already registered. Try `authcli login`.")
			return nil
		}
		return err
	}
	fmt.Println("Registered. Check your email for the verification code.")

	// Carry email and password so a successful verify can log in without
	// re-prompting.
	flow.Navigate(client.ScreenVerifyOTP, client.Patch{
		Email:           client.String(email),
		PendingPassword: client.String(password),
	})

	if err := runOTPEntry(func(code string) error {
		return api.Verify(ctx, flow.State().Email, code)
	}, func() error {
		return api.ResendOTP(ctx, flow.State().Email)
	}); err != nil {
		return err
	}

	state := flow.State()
	session, err := api.Login(ctx, state.Email, state.PendingPassword)
	if err != nil {
		fmt.Println("Account verified. Please log in with `authcli login`.")
		return nil
	}
	if err := store.Save(session); err != nil {
		return err
	}
	flow.Navigate(client.ScreenSuccess, client.Patch{Session: session})

	outcome := flow.SuccessOutcome()
	fmt.Printf("Welcome, %s! Redirecting to %s\n", session.User.Name, outcome.RedirectPath)
	return nil
}

func login(ctx context.Context, api *client.Client, store client.SessionStore) error {
	email := prompt("Email")
	password, err := promptPassword("Password")
	if err != nil {
		return err
	}

	session, err := api.Login(ctx, email, password)
	if err != nil {
		if apiErr, ok := err.(*client.APIError); ok && apiErr.Code == "AUTH_002" {
			fmt.Println("Account not verified yet. Run `authcli register` flow or request a new code.")
			return nil
		}
		return err
	}
	if err := store.Save(session); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s). Dashboard: %s\n",
		session.User.Name, session.User.Role, session.User.Role.DashboardPath())
	return nil
}

func forgot(ctx context.Context, api *client.Client) error {
	flow := client.NewFlow()
	email := prompt("Email")

	if err := api.ForgotPassword(ctx, email); err != nil {
		return err
	}
	fmt.Println("A reset code has been sent to your email.")

	flow.Navigate(client.ScreenVerifyOTP, client.Patch{
		Email:     client.String(email),
		ResetFlow: client.Bool(true),
	})

	var acceptedCode string
	if err := runOTPEntry(func(code string) error {
		if err := api.VerifyPasswordResetOTP(ctx, email, code); err != nil {
			return err
		}
		acceptedCode = code
		return nil
	}, func() error {
		return api.ForgotPassword(ctx, email)
	}); err != nil {
		return err
	}

	flow.Navigate(client.ScreenResetPassword, client.Patch{})
	newPassword, err := promptPassword("New password")
	if err != nil {
		return err
	}
	if err := api.ResetPassword(ctx, email, acceptedCode, newPassword); err != nil {
		return err
	}
	fmt.Println("Password reset. Log in with `authcli login`.")
	return nil
}

func me(ctx context.Context, api *client.Client, store client.SessionStore) error {
	session, err := store.Load()
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	user, err := api.Me(ctx, session.Token)
	if err != nil {
		if apiErr, ok := err.(*client.APIError); ok && apiErr.Code == "AUTH_004" {
			fmt.Println("Session expired. Please log in again.")
			return store.Clear()
		}
		return err
	}
	fmt.Printf("%s <%s> role=%s verified=%t\n", user.Name, user.Email, user.Role, user.IsVerified)
	return nil
}

// runOTPEntry drives the entry widget from line input: a pasted 6-digit code,
// "r" to resend once the cooldown allows, or "q" to give up.
func runOTPEntry(verify func(code string) error, resend func() error) error {
	w := client.NewOTPInput(client.DefaultResendCooldown, client.DefaultMaxOTPAttempts)
	lastTick := time.Now()

	for {
		// Advance the cooldown by however long the user took to answer.
		now := time.Now()
		for ; lastTick.Before(now); lastTick = lastTick.Add(time.Second) {
			w.Tick()
		}

		if w.Locked() {
			return fmt.Errorf("too many failed attempts, request a new code later")
		}

		line := prompt("Code (or r=resend, q=quit)")
		switch line {
		case "q":
			return fmt.Errorf("verification aborted")
		case "r":
			if !w.CanResend() {
				fmt.Printf("Resend available in %ds.\n", w.ResendRemaining())
				continue
			}
			if err := resend(); err != nil {
				return err
			}
			w.Resend()
			fmt.Println("A new code has been sent.")
			continue
		}

		if !w.Paste(line) {
			fmt.Println("Enter exactly six digits.")
			continue
		}

		err := w.Submit(verify)
		if err == nil {
			fmt.Println("Code accepted.")
			return nil
		}
		if apiErr, ok := err.(*client.APIError); ok {
			fmt.Printf("%s (%d of %d attempts used)\n", apiErr.Message, w.Attempts(), client.DefaultMaxOTPAttempts)
			continue
		}
		return err
	}
}
