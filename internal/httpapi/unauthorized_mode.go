package httpapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidUnauthorizedMode indicates an unknown unauthorized mode.
var ErrInvalidUnauthorizedMode = errors.New("invalid unauthorized mode")

// UnauthorizedMode selects what the panel does after the backend rejects the credential.
type UnauthorizedMode string

const (
	// UnauthorizedModeStay clears the credential and keeps the user on the panel.
	UnauthorizedModeStay UnauthorizedMode = "stay"
	// UnauthorizedModeRedirect clears the credential and sends the user to the login page.
	UnauthorizedModeRedirect UnauthorizedMode = "redirect"
)

// ParseUnauthorizedMode parses rawInput. Empty input selects UnauthorizedModeStay.
func ParseUnauthorizedMode(rawInput string) (UnauthorizedMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" {
		return UnauthorizedModeStay, nil
	}

	mode := UnauthorizedMode(normalized)
	switch mode {
	case UnauthorizedModeStay, UnauthorizedModeRedirect:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnauthorizedMode, rawInput)
	}
}
