package main

import (
	vexaerrors "github.com/vexaai/vexa/pkg/errors"
)

// Exit codes let scripts distinguish auth failures (re-login) from
// transient transport problems (retry).
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitAuth      = 3
	exitTransport = 4
)

func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	switch vexaerrors.GetCode(err) {
	case vexaerrors.ErrCodeAuthExpired, vexaerrors.ErrCodeAuthInvalid:
		return exitAuth
	case vexaerrors.ErrCodeTransport:
		return exitTransport
	case vexaerrors.ErrCodeInvalidInput, vexaerrors.ErrCodeValidation:
		return exitUsage
	default:
		return exitFailure
	}
}
