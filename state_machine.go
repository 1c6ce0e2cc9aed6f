package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// AccountState is the combined verification and session state of a user.
type AccountState string

const (
	// StateUnverified is the initial state, no session can exist.
	StateUnverified AccountState = "unverified"
	// StateVerified is a confirmed account without a live session.
	StateVerified AccountState = "verified"
	// StateSignedIn is a confirmed account holding a session token.
	StateSignedIn AccountState = "signed_in"
)

// AccountEvent is a workflow step that may move an account between states.
type AccountEvent string

const (
	EventVerify       AccountEvent = "verify"
	EventResend       AccountEvent = "resend"
	EventSignin       AccountEvent = "signin"
	EventSignout      AccountEvent = "signout"
	EventUpdateAvatar AccountEvent = "update_avatar"
)

// ErrInvalidTransition is returned when an event is not allowed from the current state.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

var accountTransitions = map[AccountState]map[AccountEvent]AccountState{
	StateUnverified: {
		EventVerify: StateVerified,
		EventResend: StateUnverified,
	},
	StateVerified: {
		EventSignin:       StateSignedIn,
		EventUpdateAvatar: StateVerified,
	},
	StateSignedIn: {
		EventSignin:       StateSignedIn,
		EventSignout:      StateVerified,
		EventUpdateAvatar: StateSignedIn,
	},
}

// CurrentState derives the account state from the persisted user fields.
func CurrentState(user *User) AccountState {
	if user == nil || !user.Verified {
		return StateUnverified
	}
	if user.HasSession() {
		return StateSignedIn
	}
	return StateVerified
}

// NextState resolves the state reached by applying event from state.
func NextState(state AccountState, event AccountEvent) (AccountState, error) {
	targets, ok := accountTransitions[state]
	if !ok {
		return state, ErrInvalidTransition
	}

	next, ok := targets[event]
	if !ok {
		return state, ErrInvalidTransition
	}

	return next, nil
}

// CanTransition reports whether event is legal for user.
func CanTransition(user *User, event AccountEvent) bool {
	_, err := NextState(CurrentState(user), event)
	return err == nil
}
