package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/jobs"
	"github.com/noah-isme/coverage-api/pkg/notify"
)

// OfferJobType tags offer notification jobs on the queue.
const OfferJobType = "offer.notify"

type offerStore interface {
	CreateBatch(ctx context.Context, offers []models.CoverageOffer) error
	ListOpenForCandidate(ctx context.Context, candidateID string) ([]models.OpenOffer, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// OfferNotification is the payload of one offer notification job.
type OfferNotification struct {
	Recipient  notify.Recipient
	OpeningID  string
	ClassName  string
	SchoolCode string
	Start      time.Time
	End        time.Time
	Urgent     bool
	Mode       models.OfferMode
}

// OfferConfig tunes offer messages.
type OfferConfig struct {
	PublicBaseURL string
	Location      *time.Location
}

// OfferService records offers and notifies candidates in the background.
type OfferService struct {
	store    offerStore
	notifier notify.Notifier
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      OfferConfig

	mu    sync.RWMutex
	queue jobEnqueuer
}

// NewOfferService constructs an OfferService. The queue is attached separately because it
// needs HandleJob as its handler.
func NewOfferService(store offerStore, notifier notify.Notifier, metrics *MetricsService, cfg OfferConfig, logger *zap.Logger) *OfferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &OfferService{store: store, notifier: notifier, metrics: metrics, cfg: cfg, logger: logger}
}

// AttachQueue wires the notification queue.
func (s *OfferService) AttachQueue(queue jobEnqueuer) {
	s.mu.Lock()
	s.queue = queue
	s.mu.Unlock()
}

// Dispatch persists one offer per candidate in rank order and enqueues a notification for each.
// Notification problems are logged and never fail the dispatch.
func (s *OfferService) Dispatch(ctx context.Context, opening *models.CoverageOpening, candidates []models.StaffMember, mode models.OfferMode) ([]models.CoverageOffer, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	offers := make([]models.CoverageOffer, len(candidates))
	for i, candidate := range candidates {
		offers[i] = models.CoverageOffer{
			OpeningID:   opening.ID,
			CandidateID: candidate.ID,
			Rank:        i + 1,
			Mode:        mode,
		}
	}
	if err := s.store.CreateBatch(ctx, offers); err != nil {
		return nil, appErrors.Internal(err, "failed to record offers")
	}
	s.metrics.RecordOffers(string(mode), len(offers))

	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()
	if queue == nil {
		return offers, nil
	}
	for i, candidate := range candidates {
		job := jobs.Job{
			ID:   offers[i].ID,
			Type: OfferJobType,
			Payload: OfferNotification{
				Recipient: notify.Recipient{
					ID:             candidate.ID,
					Name:           candidate.Name,
					Email:          candidate.Email,
					TelegramChatID: candidate.TelegramChatID,
				},
				OpeningID:  opening.ID,
				ClassName:  opening.ClassName,
				SchoolCode: opening.SchoolCode,
				Start:      opening.StartTime,
				End:        opening.EndTime,
				Urgent:     opening.Urgent,
				Mode:       mode,
			},
		}
		if err := queue.Enqueue(job); err != nil {
			s.logger.Warn("offer notification not queued",
				zap.String("opening_id", opening.ID), zap.String("candidate_id", candidate.ID), zap.Error(err))
		}
	}
	return offers, nil
}

// HandleJob delivers one offer notification. Returning an error asks the queue to retry.
func (s *OfferService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(OfferNotification)
	if !ok {
		s.logger.Error("unexpected offer job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if s.notifier == nil {
		return nil
	}
	err := s.notifier.Send(ctx, s.message(payload))
	s.metrics.RecordNotification(err == nil)
	if err != nil {
		return fmt.Errorf("notify %s: %w", payload.Recipient.ID, err)
	}
	return nil
}

// ListForCandidate returns the open offers made to a candidate.
func (s *OfferService) ListForCandidate(ctx context.Context, candidateID string, scope *models.RequestScope) ([]models.OpenOffer, error) {
	if strings.TrimSpace(candidateID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute_id is required")
	}
	if !scope.ActsFor(candidateID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view offers of another staff member")
	}
	offers, err := s.store.ListOpenForCandidate(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list offers")
	}
	if offers == nil {
		offers = []models.OpenOffer{}
	}
	return offers, nil
}

func (s *OfferService) message(n OfferNotification) notify.Message {
	start := n.Start.In(s.cfg.Location)
	end := n.End.In(s.cfg.Location)
	subject := fmt.Sprintf("Coverage needed: %s", n.ClassName)
	if n.Urgent {
		subject = "URGENT " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", n.Recipient.Name)
	fmt.Fprintf(&b, "%s at %s needs coverage on %s from %s to %s.\n",
		n.ClassName, n.SchoolCode, start.Format("Mon 2 Jan"), start.Format("15:04"), end.Format("15:04"))
	if n.Mode == models.OfferModeBroadcast {
		b.WriteString("This opening was sent to several colleagues; the first to accept gets it.\n")
	}
	if s.cfg.PublicBaseURL != "" {
		fmt.Fprintf(&b, "\nAccept it here: %s/jobs/%s\n", strings.TrimRight(s.cfg.PublicBaseURL, "/"), n.OpeningID)
	}
	return notify.Message{To: n.Recipient, Subject: subject, Text: b.String()}
}
