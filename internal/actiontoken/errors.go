package actiontoken

import (
	"fmt"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
)

// TokenReason classifies why a token was rejected. All reasons are terminal:
// the operator needs a fresh link, retrying the same token cannot succeed.
type TokenReason string

const (
	ReasonNotFound       TokenReason = "not_found"
	ReasonBadSecret      TokenReason = "bad_secret"
	ReasonExpired        TokenReason = "expired"
	ReasonConsumed       TokenReason = "consumed"
	ReasonWrongAction    TokenReason = "wrong_action"
	ReasonStatusMismatch TokenReason = "status_mismatch"
)

// TokenError reports a rejected action token.
type TokenError struct {
	Reason TokenReason
	// CurrentStatus is set for status mismatches so the operator surface can
	// explain what happened to the lead in the meantime.
	CurrentStatus domain.Status
}

func (e *TokenError) Error() string {
	if e.Reason == ReasonStatusMismatch {
		return fmt.Sprintf("action token rejected: lead moved to %s", e.CurrentStatus)
	}
	return fmt.Sprintf("action token rejected: %s", e.Reason)
}
