// Package conversation drives one inbound client message through the
// qualification and booking flow: idempotency gate, keyword handling,
// status dispatch, step advancement, and the outbound reply. All state
// mutations are committed before any message leaves the process.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/ledger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// InboundMessage is one client message as delivered by the messaging webhook.
// EventID is the provider's delivery id and is the idempotency key.
type InboundMessage struct {
	EventID    string
	Phone      string
	Name       string
	Text       string
	ReceivedAt time.Time
}

// LeadStore is the lead persistence surface the orchestrator needs.
// Satisfied by repository.Repository.
type LeadStore interface {
	Create(ctx context.Context, phone string, name *string) (repository.Lead, error)
	GetActiveByPhone(ctx context.Context, phone string) (repository.Lead, error)
	GetLatestByPhone(ctx context.Context, phone string) (repository.Lead, error)
	TouchLastClientMessage(ctx context.Context, id uuid.UUID, at time.Time) error
	AdvanceStep(ctx context.Context, id uuid.UUID, fromStep int) (bool, error)
	SaveAnswer(ctx context.Context, id uuid.UUID, questionKey, value string) error
	AppendTimeWindow(ctx context.Context, id uuid.UUID, window string) error
	SetName(ctx context.Context, id uuid.UUID, name string) error
}

// StateMachine is the guarded-transition surface. Satisfied by state.Machine.
type StateMachine interface {
	Transition(ctx context.Context, leadID uuid.UUID, from, to domain.Status, reason string) (repository.Lead, error)
	TransitionWithStep(ctx context.Context, leadID uuid.UUID, from, to domain.Status, step int, reason string) (repository.Lead, error)
	ResetToNew(ctx context.Context, leadID uuid.UUID, prior domain.Status) (repository.Lead, error)
}

// EventLedger is the idempotency surface. Satisfied by ledger.Ledger.
type EventLedger interface {
	CheckProcessed(ctx context.Context, eventID string) (bool, error)
	RecordProcessed(ctx context.Context, eventID, eventType string, leadID *uuid.UUID) error
}

// ReplySender sends outbound replies under the window policy.
// Satisfied by outbound.Policy.
type ReplySender interface {
	Send(ctx context.Context, lead repository.Lead, text, templateKey string, params []string) outbound.SendResult
}

// Orchestrator routes inbound messages through the conversation flow.
type Orchestrator struct {
	leads      LeadStore
	machine    StateMachine
	ledger     EventLedger
	replies    ReplySender
	script     *Script
	maxWindows int
	log        *logger.Logger
}

func NewOrchestrator(leads LeadStore, machine StateMachine, ledg EventLedger, replies ReplySender, script *Script, maxWindows int, log *logger.Logger) *Orchestrator {
	if maxWindows <= 0 {
		maxWindows = 3
	}
	return &Orchestrator{
		leads:      leads,
		machine:    machine,
		ledger:     ledg,
		replies:    replies,
		script:     script,
		maxWindows: maxWindows,
		log:        log,
	}
}

// HandleInbound processes one client message end to end. A returned error
// means the message was NOT recorded as processed and the provider should
// redeliver it; nil means the event is settled, whether or not a reply was
// actually delivered.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg InboundMessage) error {
	done, err := o.ledger.CheckProcessed(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("ledger check %s: %w", msg.EventID, err)
	}
	if done {
		o.log.Debug("duplicate inbound event skipped", "event_id", msg.EventID)
		return nil
	}

	lead, outcome, err := o.resolveLead(ctx, msg)
	if err != nil {
		return err
	}
	if lead == nil {
		// Opted-out contact without a restart keyword: settle silently.
		return o.record(ctx, msg, nil)
	}

	if err := o.leads.TouchLastClientMessage(ctx, lead.ID, msg.ReceivedAt); err != nil {
		return fmt.Errorf("touch lead %s: %w", lead.ID, err)
	}
	at := msg.ReceivedAt
	lead.LastClientMessageAt = &at

	if msg.Name != "" && lead.Name == nil {
		if err := o.leads.SetName(ctx, lead.ID, msg.Name); err != nil {
			o.log.DatabaseError("set lead name", err)
		}
	}

	if outcome == leadReengaged {
		// The restart keyword itself is not an answer; ask the first
		// question and settle.
		o.replyWithQuestion(ctx, *lead, msgResumed)
		return o.record(ctx, msg, &lead.ID)
	}

	switch domain.MatchKeyword(msg.Text) {
	case domain.KeywordStop:
		return o.handleStop(ctx, msg, *lead)
	case domain.KeywordHandover:
		return o.handleHandover(ctx, msg, *lead)
	case domain.KeywordStart:
		if lead.Status == domain.StatusNeedsFollowUp {
			return o.handleClientResume(ctx, msg, *lead)
		}
		// START in any other live phase carries no special meaning beyond
		// the re-engagement path handled in resolveLead; it falls through
		// as text.
	}

	return o.dispatch(ctx, msg, *lead, outcome == leadCreated)
}

type leadOutcome int

const (
	leadExisting leadOutcome = iota
	leadCreated
	leadReengaged
)

// resolveLead finds or creates the lead for the sender. A nil lead with a nil
// error means the contact is opted out and must not be engaged.
func (o *Orchestrator) resolveLead(ctx context.Context, msg InboundMessage) (*repository.Lead, leadOutcome, error) {
	lead, err := o.leads.GetActiveByPhone(ctx, msg.Phone)
	if err == nil {
		return &lead, leadExisting, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, leadExisting, fmt.Errorf("lookup lead by phone: %w", err)
	}

	prior, perr := o.leads.GetLatestByPhone(ctx, msg.Phone)
	if perr == nil && prior.Status == domain.StatusOptOut {
		if domain.MatchKeyword(msg.Text) != domain.KeywordStart {
			return nil, leadExisting, nil
		}
		resumed, terr := o.machine.TransitionWithStep(ctx, prior.ID, domain.StatusOptOut, domain.StatusQualifying, 0, "client:restart")
		if terr != nil {
			return nil, leadExisting, o.transitionFailure(ctx, msg, prior.ID, terr)
		}
		o.log.WithLead(prior.ID.String()).Info("opted-out contact re-engaged")
		return &resumed, leadReengaged, nil
	}
	if perr != nil && !errors.Is(perr, repository.ErrNotFound) {
		return nil, leadExisting, fmt.Errorf("lookup latest lead by phone: %w", perr)
	}

	var name *string
	if msg.Name != "" {
		n := msg.Name
		name = &n
	}
	fresh, cerr := o.leads.Create(ctx, msg.Phone, name)
	if cerr != nil {
		return nil, leadExisting, fmt.Errorf("create lead: %w", cerr)
	}
	o.log.WithLead(fresh.ID.String()).Info("lead created", "phone", msg.Phone)
	return &fresh, leadCreated, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, msg InboundMessage, lead repository.Lead, created bool) error {
	switch lead.Status {
	case domain.StatusNew:
		return o.beginQualifying(ctx, msg, lead, created)

	case domain.StatusQualifying:
		return o.handleQualifyingAnswer(ctx, msg, lead)

	case domain.StatusPendingApproval, domain.StatusNeedsArtistReply:
		o.reply(ctx, lead, msgReviewing, tmplGeneric, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusNeedsFollowUp:
		o.reply(ctx, lead, msgFollowUp, tmplFollowUp, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusTourConversionOffered:
		return o.handleTourReply(ctx, msg, lead)

	case domain.StatusAwaitingDeposit:
		o.reply(ctx, lead, msgDepositHowTo, tmplDeposit, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusDepositPaid:
		// Normally the payment handler advances this; a client message
		// arriving first nudges the lead into scheduling.
		next, err := o.machine.Transition(ctx, lead.ID, domain.StatusDepositPaid, domain.StatusCollectingTimeWindows, "client:message")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		o.reply(ctx, next, msgAskWindows, tmplGeneric, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusCollectingTimeWindows:
		return o.handleTimeWindow(ctx, msg, lead)

	case domain.StatusBookingPending:
		o.reply(ctx, lead, msgBookingPending, tmplGeneric, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusDepositExpired:
		next, err := o.machine.Transition(ctx, lead.ID, domain.StatusDepositExpired, domain.StatusAwaitingDeposit, "client:retry_deposit")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		o.reply(ctx, next, msgDepositRetry, tmplDeposit, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusStale:
		next, err := o.machine.Transition(ctx, lead.ID, domain.StatusStale, domain.StatusAwaitingDeposit, "client:resume")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		o.reply(ctx, next, msgResumed+" "+msgDepositHowTo, tmplDeposit, nil)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusAbandoned:
		next, err := o.machine.TransitionWithStep(ctx, lead.ID, domain.StatusAbandoned, domain.StatusQualifying, lead.Step, "client:resume")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		o.replyWithQuestion(ctx, next, msgResumed)
		return o.record(ctx, msg, &lead.ID)

	case domain.StatusBooked, domain.StatusRejected, domain.StatusWaitlisted, domain.StatusOptOut:
		// Terminal leads are filtered out by resolveLead; a concurrent
		// transition can still land one here. Settle without engaging.
		return o.record(ctx, msg, &lead.ID)

	default:
		return o.recoverUnknownStatus(ctx, msg, lead)
	}
}

// beginQualifying moves a fresh lead into the question flow and asks the
// first question.
func (o *Orchestrator) beginQualifying(ctx context.Context, msg InboundMessage, lead repository.Lead, created bool) error {
	next, err := o.machine.TransitionWithStep(ctx, lead.ID, domain.StatusNew, domain.StatusQualifying, 0, "client:intake")
	if err != nil {
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	greeting := ""
	if !created {
		greeting = msgResumed
	}
	o.replyWithQuestion(ctx, next, greeting)
	return o.record(ctx, msg, &lead.ID)
}

// handleQualifyingAnswer stores the answer for the current step and advances
// the step with a compare-and-set, so a crash-replayed event can never move
// the conversation forward twice.
func (o *Orchestrator) handleQualifyingAnswer(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	q, ok := o.script.Question(lead.Step)
	if !ok {
		// Step ran past the script, e.g. after a script shortening.
		return o.completeQualifying(ctx, msg, lead)
	}

	if err := o.leads.SaveAnswer(ctx, lead.ID, q.Key, strings.TrimSpace(msg.Text)); err != nil {
		return fmt.Errorf("save answer for lead %s: %w", lead.ID, err)
	}
	advanced, err := o.leads.AdvanceStep(ctx, lead.ID, lead.Step)
	if err != nil {
		return fmt.Errorf("advance step for lead %s: %w", lead.ID, err)
	}
	if !advanced {
		// Another delivery of this answer already advanced the step.
		o.log.WithLead(lead.ID.String()).Info("step already advanced, settling duplicate", "step", lead.Step)
		return o.record(ctx, msg, &lead.ID)
	}

	nextStep := lead.Step + 1
	if nextStep >= o.script.Len() {
		lead.Step = nextStep
		return o.completeQualifying(ctx, msg, lead)
	}
	next, _ := o.script.Question(nextStep)
	lead.Step = nextStep
	o.reply(ctx, lead, next.Prompt, tmplGeneric, nil)
	return o.record(ctx, msg, &lead.ID)
}

func (o *Orchestrator) completeQualifying(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	next, err := o.machine.TransitionWithStep(ctx, lead.ID, domain.StatusQualifying, domain.StatusPendingApproval, lead.Step, "client:qualified")
	if err != nil {
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	o.reply(ctx, next, msgQualifyingDone, tmplGeneric, nil)
	return o.record(ctx, msg, &lead.ID)
}

// handleTourReply interprets a yes/no answer to the guest-spot offer.
func (o *Orchestrator) handleTourReply(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	switch parseYesNo(msg.Text) {
	case yes:
		next, err := o.machine.Transition(ctx, lead.ID, domain.StatusTourConversionOffered, domain.StatusAwaitingDeposit, "client:tour_accepted")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		o.reply(ctx, next, msgDepositHowTo, tmplDeposit, nil)
	case no:
		next, err := o.machine.Transition(ctx, lead.ID, domain.StatusTourConversionOffered, domain.StatusWaitlisted, "client:tour_declined")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		o.reply(ctx, next, msgWaitlisted, tmplGeneric, nil)
	default:
		o.reply(ctx, lead, msgTourUnclear, tmplGeneric, nil)
	}
	return o.record(ctx, msg, &lead.ID)
}

// handleTimeWindow collects availability options until the client says DONE
// or the cap is reached.
func (o *Orchestrator) handleTimeWindow(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	text := strings.TrimSpace(msg.Text)
	finished := strings.EqualFold(text, windowDoneKey)

	if !finished {
		if err := o.leads.AppendTimeWindow(ctx, lead.ID, text); err != nil {
			return fmt.Errorf("append time window for lead %s: %w", lead.ID, err)
		}
		lead.TimeWindows = append(lead.TimeWindows, text)
		finished = len(lead.TimeWindows) >= o.maxWindows
	} else if len(lead.TimeWindows) == 0 {
		o.reply(ctx, lead, msgAskWindows, tmplGeneric, nil)
		return o.record(ctx, msg, &lead.ID)
	}

	if !finished {
		o.reply(ctx, lead, msgMoreWindows, tmplGeneric, nil)
		return o.record(ctx, msg, &lead.ID)
	}

	next, err := o.machine.Transition(ctx, lead.ID, domain.StatusCollectingTimeWindows, domain.StatusBookingPending, "client:windows_complete")
	if err != nil {
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	o.reply(ctx, next, msgWindowsDone, tmplGeneric, nil)
	return o.record(ctx, msg, &lead.ID)
}

func (o *Orchestrator) handleStop(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	if domain.IsTerminal(lead.Status) {
		return o.record(ctx, msg, &lead.ID)
	}
	if _, err := o.machine.Transition(ctx, lead.ID, lead.Status, domain.StatusOptOut, "client:stop"); err != nil {
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	o.log.WithLead(lead.ID.String()).Info("client opted out", "prior_status", string(lead.Status))
	return o.record(ctx, msg, &lead.ID)
}

func (o *Orchestrator) handleHandover(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	if domain.CanTransition(lead.Status, domain.StatusNeedsFollowUp) {
		next, err := o.machine.Transition(ctx, lead.ID, lead.Status, domain.StatusNeedsFollowUp, "client:handover")
		if err != nil {
			return o.transitionFailure(ctx, msg, lead.ID, err)
		}
		lead = next
	}
	o.reply(ctx, lead, msgFollowUp, tmplFollowUp, nil)
	return o.record(ctx, msg, &lead.ID)
}

// handleClientResume brings a parked follow-up conversation back into
// qualifying at the step it stopped on.
func (o *Orchestrator) handleClientResume(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	next, err := o.machine.Transition(ctx, lead.ID, lead.Status, domain.StatusQualifying, "client:resume")
	if err != nil {
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	o.replyWithQuestion(ctx, next, msgResumed)
	return o.record(ctx, msg, &next.ID)
}

// recoverUnknownStatus resets a lead whose stored status is outside the known
// set, then restarts intake.
func (o *Orchestrator) recoverUnknownStatus(ctx context.Context, msg InboundMessage, lead repository.Lead) error {
	reset, err := o.machine.ResetToNew(ctx, lead.ID, lead.Status)
	if err != nil {
		// A conflict means another actor moved the lead out of the unknown
		// status mid-recovery; that settles the event like any lost race.
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	next, err := o.machine.TransitionWithStep(ctx, reset.ID, domain.StatusNew, domain.StatusQualifying, 0, "system:recovered")
	if err != nil {
		return o.transitionFailure(ctx, msg, lead.ID, err)
	}
	o.replyWithQuestion(ctx, next, msgRestart)
	return o.record(ctx, msg, &lead.ID)
}

// transitionFailure decides whether a failed transition settles the event or
// demands a redelivery. Transient store errors propagate so the provider
// retries; a losing race means another actor handled the lead, and the event
// is settled as processed.
func (o *Orchestrator) transitionFailure(ctx context.Context, msg InboundMessage, leadID uuid.UUID, err error) error {
	var invalid *state.InvalidTransitionError
	if state.IsConflict(err) || errors.As(err, &invalid) {
		o.log.WithLead(leadID.String()).Warn("transition lost to concurrent actor", "error", err)
		return o.record(ctx, msg, &leadID)
	}
	return fmt.Errorf("transition lead %s: %w", leadID, err)
}

// record marks the event processed. It runs only after every state mutation
// for the event has committed; reply delivery failures never block it.
func (o *Orchestrator) record(ctx context.Context, msg InboundMessage, leadID *uuid.UUID) error {
	if err := o.ledger.RecordProcessed(ctx, msg.EventID, ledger.TypeMessage, leadID); err != nil {
		return fmt.Errorf("record event %s: %w", msg.EventID, err)
	}
	return nil
}

// reply sends an outbound message and logs non-delivery. Replies happen after
// the state mutation committed, so a failed send never unwinds state.
func (o *Orchestrator) reply(ctx context.Context, lead repository.Lead, text, templateKey string, params []string) {
	res := o.replies.Send(ctx, lead, text, templateKey, params)
	if !res.Sent() && res.Err != nil {
		o.log.WithLead(lead.ID.String()).Error("reply not delivered", "status", string(res.Status), "error", res.Err)
	}
}

// replyWithQuestion prefixes the current script question with an optional
// greeting line.
func (o *Orchestrator) replyWithQuestion(ctx context.Context, lead repository.Lead, greeting string) {
	q, ok := o.script.Question(lead.Step)
	if !ok {
		o.reply(ctx, lead, msgReviewing, tmplGeneric, nil)
		return
	}
	text := q.Prompt
	if greeting != "" {
		text = greeting + " " + q.Prompt
	}
	o.reply(ctx, lead, text, tmplGeneric, nil)
}

type yesNo int

const (
	unclear yesNo = iota
	yes
	no
)

func parseYesNo(text string) yesNo {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!")
	switch t {
	case "yes", "y", "yeah", "yep", "sure", "ok", "okay":
		return yes
	case "no", "n", "nope", "nah":
		return no
	}
	return unclear
}
