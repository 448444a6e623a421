// Package auth implements credential verification, role gating and the OTP
// second factor for Stockwarden.
package auth

import (
	"fmt"
	"sync"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// =============================================================================
// Session State
// =============================================================================

// State is the position of a Session in the login state machine.
type State int

const (
	// StateUnauthenticated means no login is in progress.
	StateUnauthenticated State = iota

	// StateEmailUnverified means the password matched but the email is not verified.
	StateEmailUnverified

	// StateOTPPending means the password matched and an OTP was issued.
	StateOTPPending

	// StateAuthenticated means the OTP was verified.
	StateAuthenticated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateEmailUnverified:
		return "EmailUnverified"
	case StateOTPPending:
		return "OtpPending"
	case StateAuthenticated:
		return "Authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the authentication context of one caller.
// It holds at most one current user, which is set only in StateAuthenticated.
// Sessions are mutated exclusively by the Authenticator.
type Session struct {
	mu      sync.RWMutex
	state   State
	pending *domain.User
	current *domain.User
}

// NewSession creates an unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentUser returns a copy of the authenticated user.
func (s *Session) CurrentUser() (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	return s.current.Clone(), true
}

// PendingUser returns a copy of the user whose login is in progress.
func (s *Session) PendingUser() (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil, false
	}
	return s.pending.Clone(), true
}

// IsAuthorized reports whether the session is authenticated with a role at
// or above required. Always false without a session user.
func (s *Session) IsAuthorized(required domain.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateAuthenticated && s.current != nil && s.current.Role.AtLeast(required)
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state = StateUnauthenticated
	s.pending = nil
	s.current = nil
	s.mu.Unlock()
}

func (s *Session) setPending(state State, u *domain.User) {
	s.mu.Lock()
	s.state = state
	s.pending = u.Clone()
	s.current = nil
	s.mu.Unlock()
}

func (s *Session) authenticate(u *domain.User) {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.pending = nil
	s.current = u.Clone()
	s.mu.Unlock()
}

// =============================================================================
// Token Stages
// =============================================================================

// Stage is the login stage a bearer token represents.
type Stage string

const (
	// StagePending tokens only allow OTP submission.
	StagePending Stage = "otp_pending"

	// StageFull tokens carry an authenticated session.
	StageFull Stage = "authenticated"
)
