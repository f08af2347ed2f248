// Package actiontoken implements single-use, status-bound credentials for
// operator actions. A token is consumed atomically with the status transition
// it authorizes, under the same row lock the state machine uses.
package actiontoken

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"

	"github.com/google/uuid"
)

// Action is the operator decision a token authorizes.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionWaitlist       Action = "waitlist"
	ActionNeedsInfo      Action = "needs_info"
	ActionOfferTour      Action = "offer_tour"
	ActionResume         Action = "resume"
	ActionConfirmBooking Action = "confirm_booking"
	ActionReworkTimes    Action = "rework_times"
)

// fixedTargets maps actions with a single destination status.
var fixedTargets = map[Action]domain.Status{
	ActionApprove:        domain.StatusAwaitingDeposit,
	ActionReject:         domain.StatusRejected,
	ActionWaitlist:       domain.StatusWaitlisted,
	ActionNeedsInfo:      domain.StatusNeedsArtistReply,
	ActionOfferTour:      domain.StatusTourConversionOffered,
	ActionConfirmBooking: domain.StatusBooked,
	ActionReworkTimes:    domain.StatusCollectingTimeWindows,
}

// TargetStatus resolves the destination status for an action given the status
// the token was bound to. Resume is the one action whose destination depends
// on where the lead is parked.
func TargetStatus(action Action, from domain.Status) (domain.Status, bool) {
	if action == ActionResume {
		switch from {
		case domain.StatusNeedsArtistReply:
			return domain.StatusPendingApproval, true
		case domain.StatusNeedsFollowUp:
			return domain.StatusQualifying, true
		default:
			return "", false
		}
	}

	target, ok := fixedTargets[action]
	return target, ok
}

// Record is the stored form of an action token. The secret is held only as a
// bcrypt hash; the full token value exists solely inside the issued link.
type Record struct {
	ID             uuid.UUID
	SecretHash     string
	LeadID         uuid.UUID
	Action         Action
	RequiredStatus domain.Status
	ExpiresAt      time.Time
	ConsumedAt     *time.Time
	CreatedAt      time.Time
}

const secretBytes = 32

// newSecret returns a URL-safe random secret for one token.
func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Format renders the wire form of a token: "<id>.<secret>".
func Format(id uuid.UUID, secret string) string {
	return id.String() + "." + secret
}

// Parse splits a wire token into its id and secret parts.
func Parse(token string) (uuid.UUID, string, error) {
	idPart, secret, found := strings.Cut(strings.TrimSpace(token), ".")
	if !found || secret == "" {
		return uuid.Nil, "", fmt.Errorf("malformed token")
	}

	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("malformed token id")
	}
	return id, secret, nil
}
