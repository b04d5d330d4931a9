package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	vexaerrors "github.com/vexaai/vexa/pkg/errors"
)

func runLoginCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "parse login flags")
	}

	address := strings.TrimSpace(*email)
	if address == "" {
		var err error
		address, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	session, err := a.orch.Login(ctx, address, password)
	if err != nil {
		return err
	}

	name := session.User.DisplayName
	if name == "" {
		name = session.User.Email
	}
	a.out.Success("Signed in as %s", name)
	return nil
}

func runRegisterCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email (prompted when omitted)")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "parse register flags")
	}

	address := strings.TrimSpace(*email)
	if address == "" {
		var err error
		address, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptSecret("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "passwords do not match").
			WithUserMessage("Passwords do not match.")
	}

	if err := a.orch.Register(ctx, address, password, strings.TrimSpace(*name)); err != nil {
		return err
	}
	a.out.Success("Account created. Run 'vexa login' to sign in.")
	return nil
}

func runLogoutCommand(ctx context.Context, a *app, args []string) error {
	if err := a.orch.Logout(ctx); err != nil {
		// Local credentials are gone either way; say so.
		a.out.Dim("Server sign-out failed; local session cleared.")
		return nil
	}
	a.out.Success("Signed out")
	return nil
}

func runWhoamiCommand(ctx context.Context, a *app, args []string) error {
	if !a.orch.IsAuthenticated() {
		return vexaerrors.New(vexaerrors.ErrCodeAuthExpired, "not signed in").
			WithUserMessage("Not signed in. Run 'vexa login' first.")
	}

	// Prefer the live profile; fall back to the stored identity offline.
	identity, err := a.orch.Profile(ctx)
	if err != nil {
		if vexaerrors.IsCode(err, vexaerrors.ErrCodeAuthExpired) {
			return err
		}
		identity = a.orch.CurrentUser()
		a.out.Dim("(offline; showing stored identity)")
	}
	if identity == nil {
		return vexaerrors.New(vexaerrors.ErrCodeAuthExpired, "no stored identity").
			WithUserMessage("Not signed in. Run 'vexa login' first.")
	}

	a.out.Bold("%s", identity.Email)
	if identity.DisplayName != "" {
		a.out.Println("Name: %s", identity.DisplayName)
	}
	a.out.Dim("ID: %s", identity.ID)
	return nil
}

func runStatusCommand(ctx context.Context, a *app, args []string) error {
	health, err := a.orch.Health(ctx)
	if err != nil {
		return err
	}
	a.out.Success("Server %s (%s)", health.Status, a.cfg.API.BaseURL)
	if health.Version != "" {
		a.out.Dim("Version: %s", health.Version)
	}
	if a.orch.IsAuthenticated() {
		a.out.Println("Signed in: yes")
	} else {
		a.out.Println("Signed in: no")
	}
	return nil
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "read input")
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// Piped input (tests, scripts): read a plain line.
		return promptLine("")
	}
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "read password")
	}
	return string(secret), nil
}
