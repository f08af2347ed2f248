package domain

import "testing"

func TestCanTransitionAllowedEdges(t *testing.T) {
	allowed := []struct {
		from Status
		to   Status
	}{
		{StatusNew, StatusQualifying},
		{StatusQualifying, StatusPendingApproval},
		{StatusQualifying, StatusNeedsFollowUp},
		{StatusQualifying, StatusAbandoned},
		{StatusAbandoned, StatusQualifying},
		{StatusPendingApproval, StatusAwaitingDeposit},
		{StatusPendingApproval, StatusRejected},
		{StatusPendingApproval, StatusWaitlisted},
		{StatusPendingApproval, StatusNeedsArtistReply},
		{StatusPendingApproval, StatusTourConversionOffered},
		{StatusNeedsArtistReply, StatusPendingApproval},
		{StatusNeedsFollowUp, StatusQualifying},
		{StatusTourConversionOffered, StatusAwaitingDeposit},
		{StatusTourConversionOffered, StatusWaitlisted},
		{StatusAwaitingDeposit, StatusDepositPaid},
		{StatusAwaitingDeposit, StatusDepositExpired},
		{StatusAwaitingDeposit, StatusStale},
		{StatusDepositExpired, StatusAwaitingDeposit},
		{StatusStale, StatusAwaitingDeposit},
		{StatusDepositPaid, StatusCollectingTimeWindows},
		{StatusCollectingTimeWindows, StatusBookingPending},
		{StatusBookingPending, StatusCollectingTimeWindows},
		{StatusBookingPending, StatusBooked},
		{StatusOptOut, StatusQualifying},
	}

	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}
}

// TestCanTransitionRejectsEverythingOutsideTable sweeps the full cross
// product of known statuses and verifies that only table edges (plus the
// global opt-out rule) are accepted.
func TestCanTransitionRejectsEverythingOutsideTable(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			got := CanTransition(from, to)

			if to == StatusOptOut {
				want := !IsTerminal(from)
				if got != want {
					t.Errorf("CanTransition(%s, OPTOUT) = %v, want %v", from, got, want)
				}
				continue
			}

			_, inTable := allowedTransitions[transitionPair{From: from, To: to}]
			if got != inTable {
				t.Errorf("CanTransition(%s, %s) = %v, table says %v", from, to, got, inTable)
			}
		}
	}
}

func TestOptOutAllowedFromEveryNonTerminalStatus(t *testing.T) {
	for _, from := range AllStatuses {
		got := CanTransition(from, StatusOptOut)
		if IsTerminal(from) {
			if got {
				t.Errorf("terminal status %s must not transition to OPTOUT", from)
			}
		} else if !got {
			t.Errorf("non-terminal status %s must be able to opt out", from)
		}
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range AllStatuses {
		if !IsTerminal(from) {
			continue
		}
		for _, to := range AllStatuses {
			if !CanTransition(from, to) {
				continue
			}
			// OPTOUT → QUALIFYING is the single sanctioned re-engagement edge.
			if from == StatusOptOut && to == StatusQualifying {
				continue
			}
			t.Errorf("terminal status %s has unexpected edge to %s", from, to)
		}
	}
}

func TestIsKnownStatus(t *testing.T) {
	for _, s := range AllStatuses {
		if !IsKnownStatus(s) {
			t.Errorf("IsKnownStatus(%s) = false", s)
		}
	}

	for _, s := range []Status{"", "BOGUS", "new", "Booked"} {
		if IsKnownStatus(s) {
			t.Errorf("IsKnownStatus(%q) = true, want false", s)
		}
	}
}

func TestTransitionsFrom(t *testing.T) {
	got := TransitionsFrom(StatusBooked)
	if len(got) != 0 {
		t.Errorf("TransitionsFrom(BOOKED) = %v, want empty", got)
	}

	got = TransitionsFrom(StatusPendingApproval)
	want := map[Status]bool{
		StatusAwaitingDeposit:       true,
		StatusRejected:              true,
		StatusWaitlisted:            true,
		StatusNeedsArtistReply:      true,
		StatusTourConversionOffered: true,
		StatusOptOut:                true,
	}
	if len(got) != len(want) {
		t.Fatalf("TransitionsFrom(PENDING_APPROVAL) = %v, want %d entries", got, len(want))
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("TransitionsFrom(PENDING_APPROVAL) contains unexpected %s", s)
		}
	}
}
