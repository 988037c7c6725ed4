package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ── Wire-level error codes ────────────────────────────────────────────────────

// TestErrorKind_SentinelMapping pins the code each sentinel carries to the
// client. Both transports map through ErrorKind, so a drift here changes
// user-visible behaviour everywhere at once.
func TestErrorKind_SentinelMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrInvalidInput, "VALIDATION"},
		{domain.ErrInvalidTradeSide, "VALIDATION"},
		{domain.ErrInvalidLeverage, "VALIDATION"},
		{domain.ErrInvalidOption, "VALIDATION"},
		{domain.ErrGameNotRunning, "PRECONDITION"},
		{domain.ErrGameAlreadyRunning, "PRECONDITION"},
		{domain.ErrGameNotPaused, "PRECONDITION"},
		{domain.ErrGameMustBeStopped, "PRECONDITION"},
		{domain.ErrMiniGameNotActive, "PRECONDITION"},
		{domain.ErrMiniGameBusy, "PRECONDITION"},
		{domain.ErrScriptEmpty, "PRECONDITION"},
		{domain.ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
		{domain.ErrInsufficientHoldings, "INSUFFICIENT_HOLDINGS"},
		{domain.ErrQuotaExceeded, "QUOTA_EXCEEDED"},
		{domain.ErrNoOpenContracts, "NOT_FOUND"},
		{domain.ErrContractNotFound, "NOT_FOUND"},
		{domain.ErrUserNotFound, "NOT_FOUND"},
		{domain.ErrScriptDayNotFound, "NOT_FOUND"},
		{domain.ErrEventNotFound, "NOT_FOUND"},
		{domain.ErrQuestionNotFound, "NOT_FOUND"},
		{domain.ErrUsernameTaken, "CONFLICT"},
		{domain.ErrAlreadyParticipated, "CONFLICT"},
		{domain.ErrPacketTaken, "CONFLICT"},
		{domain.ErrUnauthorized, "AUTH"},
		{domain.ErrTokenInvalid, "AUTH"},
		{domain.ErrInvalidCredentials, "AUTH"},
		{domain.ErrForbidden, "PERMISSION"},
		{domain.ErrAdminKeyMismatch, "PERMISSION"},
	}
	for _, c := range cases {
		if got := domain.ErrorKind(c.err); got != c.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

// TestErrorKind_WrappedAndUnknown checks that the classification survives
// fmt.Errorf %w wrapping and that everything unrecognised stays INTERNAL.
func TestErrorKind_WrappedAndUnknown(t *testing.T) {
	wrapped := fmt.Errorf("trade_service.CancelContracts: %w", domain.ErrNoOpenContracts)
	if got := domain.ErrorKind(wrapped); got != "NOT_FOUND" {
		t.Errorf("ErrorKind(wrapped) = %q, want NOT_FOUND", got)
	}
	if got := domain.ErrorKind(errors.New("disk on fire")); got != "INTERNAL" {
		t.Errorf("ErrorKind(unknown) = %q, want INTERNAL", got)
	}
	if got := domain.ErrorKind(nil); got != "" {
		t.Errorf("ErrorKind(nil) = %q, want empty", got)
	}
}

// TestIsNotFound_CancelWithNothingOpen covers the empty-cancel edge: a cancel
// that finds no open orders must read as a 404-class miss, not a server fault.
func TestIsNotFound_CancelWithNothingOpen(t *testing.T) {
	if !domain.IsNotFound(domain.ErrNoOpenContracts) {
		t.Error("IsNotFound(ErrNoOpenContracts) = false, want true")
	}
}
