// Package operator exposes the artist-facing surface: one-shot action links
// from alert e-mails, and the authenticated admin API for browsing leads and
// issuing new links.
package operator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/actiontoken"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/apperr"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// Client copy sent after an operator decision lands.
const (
	msgApproved    = "Great news, the artist approved your request! To secure your booking we ask for a deposit. Use the payment link we sent to complete it."
	msgRejected    = "Thank you for your interest. Unfortunately the artist can't take this project on right now."
	msgWaitlisted  = "The artist's books are full at the moment, so we've added you to the waitlist and will reach out when a slot opens."
	msgNeedsInfo   = "The artist had a look and has a couple of questions. We'll message you shortly with the details."
	msgTourOffer   = "The artist would love to fit you in during their upcoming guest spot. Would that work for you? Reply YES or NO."
	msgResumed     = "Thanks for waiting! Let's continue with your request."
	msgBooked      = "You're all booked in. See you at the studio!"
	msgReworkTimes = "Those times didn't line up with the artist's calendar. Could you send a few other options?"
)

// clientReplies maps each operator action to the message the client receives
// once the transition has committed.
var clientReplies = map[actiontoken.Action]struct {
	text        string
	templateKey string
}{
	actiontoken.ActionApprove:        {msgApproved, "deposit_link"},
	actiontoken.ActionReject:         {msgRejected, "studio_update"},
	actiontoken.ActionWaitlist:       {msgWaitlisted, "studio_update"},
	actiontoken.ActionNeedsInfo:      {msgNeedsInfo, "studio_update"},
	actiontoken.ActionOfferTour:      {msgTourOffer, "studio_update"},
	actiontoken.ActionResume:         {msgResumed, "studio_update"},
	actiontoken.ActionConfirmBooking: {msgBooked, "studio_update"},
	actiontoken.ActionReworkTimes:    {msgReworkTimes, "studio_update"},
}

// TokenExecutor is the token surface. Satisfied by actiontoken.Executor.
type TokenExecutor interface {
	Issue(ctx context.Context, leadID uuid.UUID, action actiontoken.Action, requiredStatus domain.Status) (string, actiontoken.Record, error)
	Execute(ctx context.Context, token string, action actiontoken.Action) (repository.Lead, error)
}

// LeadStore is the lead persistence surface the admin API needs.
// Satisfied by repository.Repository.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, status *domain.Status, limit, offset int) ([]repository.Lead, error)
	SetDepositSessionRef(ctx context.Context, id uuid.UUID, ref string) error
}

// ReplySender sends outbound messages under the window policy.
// Satisfied by outbound.Policy.
type ReplySender interface {
	Send(ctx context.Context, lead repository.Lead, text, templateKey string, params []string) outbound.SendResult
}

type Service struct {
	executor TokenExecutor
	leads    LeadStore
	replies  ReplySender
	linkBase string
	log      *logger.Logger
}

func NewService(executor TokenExecutor, leads LeadStore, replies ReplySender, linkBase string, log *logger.Logger) *Service {
	return &Service{
		executor: executor,
		leads:    leads,
		replies:  replies,
		linkBase: strings.TrimRight(linkBase, "/"),
		log:      log,
	}
}

// ExecuteAction consumes a token and, once the transition has committed,
// notifies the client of the decision. The notification is best-effort; the
// decision stands even when the send degrades.
func (s *Service) ExecuteAction(ctx context.Context, token string, action actiontoken.Action) (repository.Lead, error) {
	lead, err := s.executor.Execute(ctx, token, action)
	if err != nil {
		return repository.Lead{}, err
	}

	if reply, ok := clientReplies[action]; ok {
		res := s.replies.Send(ctx, lead, reply.text, reply.templateKey, nil)
		if !res.Sent() && res.Err != nil {
			s.log.WithLead(lead.ID.String()).Error("decision notification not delivered", "action", string(action), "status", string(res.Status), "error", res.Err)
		}
	}
	return lead, nil
}

// IssueActionLink mints a fresh one-shot link for a lead in its current
// status.
func (s *Service) IssueActionLink(ctx context.Context, leadID uuid.UUID, action actiontoken.Action) (string, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return "", leadLookupError(err)
	}
	token, _, err := s.executor.Issue(ctx, lead.ID, action, lead.Status)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/actions/%s?token=%s", s.linkBase, action, token), nil
}

// AttachDepositSession records the checkout session reference the payment
// webhook will later use to find this lead.
func (s *Service) AttachDepositSession(ctx context.Context, leadID uuid.UUID, sessionRef string) error {
	if err := s.leads.SetDepositSessionRef(ctx, leadID, sessionRef); err != nil {
		return leadLookupError(err)
	}
	return nil
}

func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return repository.Lead{}, leadLookupError(err)
	}
	return lead, nil
}

// leadLookupError types a missing lead for the HTTP layer; other store
// failures pass through untyped and surface as internal errors.
func leadLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "lead not found", err)
	}
	return err
}

func (s *Service) ListLeads(ctx context.Context, status *domain.Status, limit, offset int) ([]repository.Lead, error) {
	return s.leads.List(ctx, status, limit, offset)
}
