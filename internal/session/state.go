// Package session owns the client-side authentication state machine.
package session

import (
	"context"
	"errors"

	"moodle-assistant/internal/api"
	"moodle-assistant/internal/models"
)

// ErrLoginSuperseded is returned when a logout or a 401 reset began while the
// login request was in flight. The login's persisted session has been removed.
var ErrLoginSuperseded = errors.New("login superseded by a later session reset")

// State is a snapshot of the controller. User is nil when unauthenticated.
type State struct {
	Authenticated bool
	SessionID     string
	User          *models.UserInfo
}

func unauthenticated() State {
	return State{}
}

func authenticated(sessionID string, user models.UserInfo) State {
	return State{Authenticated: true, SessionID: sessionID, User: &user}
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) RedirectToLogin(ctx context.Context) {
	f(ctx)
}

// Client is the part of api.Client the controller drives.
type Client interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context) error
	ValidateSession(ctx context.Context) (*models.ValidateResponse, error)
	ClearSession(ctx context.Context)
	OnUnauthorized(fn api.UnauthorizedHandler) (remove func())
}

// QueryCache is cleared whenever the session it was filled under ends.
type QueryCache interface {
	Clear()
}
