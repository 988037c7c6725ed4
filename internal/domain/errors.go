package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation / input errors
var (
	// ErrInvalidInput is returned when a quantity, amount, or enum value fails
	// validation before any state is touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTradeSide is returned when a contract side is not LONG or SHORT.
	ErrInvalidTradeSide = errors.New("invalid contract side: must be LONG or SHORT")

	// ErrInvalidLeverage is returned when leverage is outside [1, maxLeverage].
	ErrInvalidLeverage = errors.New("leverage outside the allowed range")

	// ErrInvalidOption is returned when a vote option is not A, B, C, or D.
	ErrInvalidOption = errors.New("invalid option: must be A, B, C or D")
)

// Game lifecycle errors
var (
	// ErrGameNotRunning is returned when a trade or borrow is attempted while
	// the game clock is stopped.
	ErrGameNotRunning = errors.New("game is not running")

	// ErrGameAlreadyRunning is returned when start is called on a running game.
	ErrGameAlreadyRunning = errors.New("game is already running")

	// ErrGameNotPaused is returned when resume is called without a prior stop.
	ErrGameNotPaused = errors.New("game is not paused")

	// ErrGameMustBeStopped is returned when restart/reset is attempted while
	// the clock is still running.
	ErrGameMustBeStopped = errors.New("game must be stopped first")
)

// Trading / credit errors
var (
	// ErrInsufficientFunds is returned when a user's cash cannot cover a buy,
	// a contract margin, or a repayment.
	ErrInsufficientFunds = errors.New("insufficient cash")

	// ErrInsufficientHoldings is returned when a user sells more shares than
	// they own.
	ErrInsufficientHoldings = errors.New("insufficient stock holdings")

	// ErrQuotaExceeded is returned when a borrow would breach the daily loan cap.
	ErrQuotaExceeded = errors.New("daily borrow quota exceeded")

	// ErrNoOpenContracts is returned when a cancel finds no cancellable orders
	// for the current day.
	ErrNoOpenContracts = errors.New("no open contracts for today")

	// ErrContractNotFound is returned when no contract order matches.
	ErrContractNotFound = errors.New("contract order not found")
)

// User errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned on registration when the username exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Script errors
var (
	// ErrScriptDayNotFound is returned when the script has no row for a day.
	ErrScriptDayNotFound = errors.New("script day not found")

	// ErrEventNotFound is returned when no scripted event matches.
	ErrEventNotFound = errors.New("event not found")

	// ErrScriptEmpty is returned when the game is started without a script.
	ErrScriptEmpty = errors.New("script is empty — generate or import one first")
)

// Mini-game errors
var (
	// ErrMiniGameNotActive is returned when a command targets a game that is
	// not in the required phase.
	ErrMiniGameNotActive = errors.New("mini-game is not in the required phase")

	// ErrMiniGameBusy is returned when INIT is issued while another game slot
	// is still active.
	ErrMiniGameBusy = errors.New("another mini-game is already active")

	// ErrAlreadyParticipated is returned on a second grab/answer by one user.
	ErrAlreadyParticipated = errors.New("already participated in this round")

	// ErrPacketTaken is returned when the target red-envelope packet is owned.
	ErrPacketTaken = errors.New("packet already taken")

	// ErrQuestionNotFound is returned when a quiz/minority question id is unknown.
	ErrQuestionNotFound = errors.New("question not found")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrAdminKeyMismatch is returned when the admin registration key is wrong.
	ErrAdminKeyMismatch = errors.New("admin key mismatch")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrUserNotFound,
	ErrNoOpenContracts,
	ErrContractNotFound,
	ErrScriptDayNotFound,
	ErrEventNotFound,
	ErrQuestionNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values
// directly when translating to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for errors caused by bad caller input.
func IsValidation(err error) bool {
	validationErrors := []error{
		ErrInvalidInput,
		ErrInvalidTradeSide,
		ErrInvalidLeverage,
		ErrInvalidOption,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsPrecondition returns true for lifecycle-invariant violations: the request
// was well-formed but the game is in the wrong state for it.
func IsPrecondition(err error) bool {
	preconditionErrors := []error{
		ErrGameNotRunning,
		ErrGameAlreadyRunning,
		ErrGameNotPaused,
		ErrGameMustBeStopped,
		ErrMiniGameNotActive,
		ErrMiniGameBusy,
		ErrScriptEmpty,
	}
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict
// (duplicates, double participation, taken packets).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrUsernameTaken,
		ErrAlreadyParticipated,
		ErrPacketTaken,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorKind classifies err into the wire-level error code surfaced to
// clients. Every transport (HTTP and real-time) maps through this one
// function so a given failure always carries the same code.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrInsufficientHoldings):
		return "INSUFFICIENT_HOLDINGS"
	case errors.Is(err, ErrQuotaExceeded):
		return "QUOTA_EXCEEDED"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAdminKeyMismatch):
		return "PERMISSION"
	case IsAuthError(err):
		return "AUTH"
	case IsValidation(err):
		return "VALIDATION"
	case IsPrecondition(err):
		return "PRECONDITION"
	case IsConflict(err):
		return "CONFLICT"
	case IsNotFound(err):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrAdminKeyMismatch,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
