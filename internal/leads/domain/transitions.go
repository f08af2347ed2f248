package domain

// transitionPair is a (from, to) edge in the lead state machine.
type transitionPair struct {
	From Status
	To   Status
}

// allowedTransitions is the static table of legal status moves. A pair absent
// from this table is rejected by the state machine even when the caller
// supplied it, so the table stays the single source of truth.
//
// The OPTOUT edge is special: every non-terminal status may move to OPTOUT
// (stop keyword), expressed through AllowedFromAny below rather than one row
// per status.
var allowedTransitions = map[transitionPair]struct{}{
	// Intake and qualification
	{StatusNew, StatusQualifying}:            {},
	{StatusQualifying, StatusPendingApproval}: {},
	{StatusQualifying, StatusNeedsFollowUp}:   {},
	{StatusQualifying, StatusAbandoned}:       {},
	{StatusAbandoned, StatusQualifying}:       {},

	// Artist review
	{StatusPendingApproval, StatusAwaitingDeposit}:       {},
	{StatusPendingApproval, StatusRejected}:              {},
	{StatusPendingApproval, StatusWaitlisted}:            {},
	{StatusPendingApproval, StatusNeedsArtistReply}:      {},
	{StatusPendingApproval, StatusTourConversionOffered}: {},
	{StatusNeedsArtistReply, StatusPendingApproval}:      {},
	{StatusNeedsFollowUp, StatusQualifying}:              {},

	// Tour conversion offer
	{StatusTourConversionOffered, StatusAwaitingDeposit}: {},
	{StatusTourConversionOffered, StatusWaitlisted}:      {},

	// Deposit
	{StatusAwaitingDeposit, StatusDepositPaid}:    {},
	{StatusAwaitingDeposit, StatusDepositExpired}: {},
	{StatusAwaitingDeposit, StatusStale}:          {},
	{StatusDepositExpired, StatusAwaitingDeposit}: {},
	{StatusStale, StatusAwaitingDeposit}:          {},

	// Booking
	{StatusDepositPaid, StatusCollectingTimeWindows}:    {},
	{StatusCollectingTimeWindows, StatusBookingPending}: {},
	{StatusBookingPending, StatusCollectingTimeWindows}: {},
	{StatusBookingPending, StatusBooked}:                {},

	// Re-engagement after opt-out
	{StatusOptOut, StatusQualifying}: {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	if to == StatusOptOut {
		// Opt-out is the highest-priority gate: any non-terminal lead may
		// opt out regardless of phase.
		return !IsTerminal(from)
	}
	_, ok := allowedTransitions[transitionPair{From: from, To: to}]
	return ok
}

// TransitionsFrom returns every status reachable from the given one.
// Used by the admin surface to offer valid operator actions.
func TransitionsFrom(from Status) []Status {
	var out []Status
	for _, to := range AllStatuses {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}
