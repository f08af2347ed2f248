// Package domain provides core business rules for the leads bounded context.
package domain

// Status is the lead's current phase in the booking conversation. The set is
// closed: every status a lead can hold is declared here, and the transition
// table in transitions.go is the single source of truth for legal moves.
type Status string

const (
	StatusNew                   Status = "NEW"
	StatusQualifying            Status = "QUALIFYING"
	StatusPendingApproval       Status = "PENDING_APPROVAL"
	StatusNeedsArtistReply      Status = "NEEDS_ARTIST_REPLY"
	StatusNeedsFollowUp         Status = "NEEDS_FOLLOW_UP"
	StatusTourConversionOffered Status = "TOUR_CONVERSION_OFFERED"
	StatusAwaitingDeposit       Status = "AWAITING_DEPOSIT"
	StatusDepositPaid           Status = "DEPOSIT_PAID"
	StatusDepositExpired        Status = "DEPOSIT_EXPIRED"
	StatusCollectingTimeWindows Status = "COLLECTING_TIME_WINDOWS"
	StatusBookingPending        Status = "BOOKING_PENDING"
	StatusBooked                Status = "BOOKED"
	StatusRejected              Status = "REJECTED"
	StatusWaitlisted            Status = "WAITLISTED"
	StatusOptOut                Status = "OPTOUT"
	StatusAbandoned             Status = "ABANDONED"
	StatusStale                 Status = "STALE"
)

// InitialStatus is the status assigned to a freshly created lead, and the
// status an unrecognized value is reset to.
const InitialStatus = StatusNew

// AllStatuses lists every known status. Dispatch code iterates this in tests
// to prove the orchestrator switch is exhaustive.
var AllStatuses = []Status{
	StatusNew,
	StatusQualifying,
	StatusPendingApproval,
	StatusNeedsArtistReply,
	StatusNeedsFollowUp,
	StatusTourConversionOffered,
	StatusAwaitingDeposit,
	StatusDepositPaid,
	StatusDepositExpired,
	StatusCollectingTimeWindows,
	StatusBookingPending,
	StatusBooked,
	StatusRejected,
	StatusWaitlisted,
	StatusOptOut,
	StatusAbandoned,
	StatusStale,
}

var knownStatuses = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(AllStatuses))
	for _, s := range AllStatuses {
		m[s] = struct{}{}
	}
	return m
}()

// IsKnownStatus reports whether the value is part of the closed status set.
// An unknown value (e.g. written by a newer deployment) routes through the
// recovery reset path rather than a transition.
func IsKnownStatus(s Status) bool {
	_, ok := knownStatuses[s]
	return ok
}

// terminalStatuses are statuses where the conversation is finished. Terminal
// leads are retained for audit and never hard-deleted. OPTOUT is terminal
// unless the client re-engages with a start keyword, which is modeled as the
// single allowed edge out of a terminal status.
var terminalStatuses = map[Status]bool{
	StatusBooked:     true,
	StatusRejected:   true,
	StatusWaitlisted: true,
	StatusOptOut:     true,
}

// IsTerminal returns true if no further automated processing should occur.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// stuckStatuses require either an operator action or a specific client
// command to resume; reminders and script handling skip them.
var stuckStatuses = map[Status]bool{
	StatusNeedsArtistReply: true,
	StatusNeedsFollowUp:    true,
}

// IsStuck returns true if the lead is parked waiting for a human.
func IsStuck(s Status) bool {
	return stuckStatuses[s]
}
