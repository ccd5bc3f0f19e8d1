package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

type candidateSource interface {
	EligibleCandidates(ctx context.Context, q models.EligibilityQuery) ([]models.StaffMember, error)
}

type offerDispatcher interface {
	Dispatch(ctx context.Context, opening *models.CoverageOpening, candidates []models.StaffMember, mode models.OfferMode) ([]models.CoverageOffer, error)
}

// RotationService ranks eligible candidates and hands offers to the dispatcher.
type RotationService struct {
	source     candidateSource
	dispatcher offerDispatcher
	logger     *zap.Logger
}

// NewRotationService constructs a RotationService.
func NewRotationService(source candidateSource, dispatcher offerDispatcher, logger *zap.Logger) *RotationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RotationService{source: source, dispatcher: dispatcher, logger: logger}
}

// RankCandidates orders members by days since last coverage (longest first), then rotation
// position, then id. The input slice is left untouched.
func RankCandidates(members []models.StaffMember) []models.StaffMember {
	ranked := make([]models.StaffMember, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.DaysSinceLastCoverage != b.DaysSinceLastCoverage {
			return a.DaysSinceLastCoverage > b.DaysSinceLastCoverage
		}
		if a.RotationPosition != b.RotationPosition {
			return a.RotationPosition < b.RotationPosition
		}
		return a.ID < b.ID
	})
	return ranked
}

// EligibilityFor builds the candidate query for an opening. The covered teacher is always excluded.
func EligibilityFor(opening *models.CoverageOpening, exclude ...string) models.EligibilityQuery {
	excluded := make([]string, 0, len(exclude)+1)
	excluded = append(excluded, opening.TeacherID)
	for _, id := range exclude {
		if id != "" && id != opening.TeacherID {
			excluded = append(excluded, id)
		}
	}
	return models.EligibilityQuery{
		DistrictCode: opening.DistrictCode,
		SchoolCode:   opening.SchoolCode,
		Department:   opening.Department,
		Date:         opening.Date,
		Start:        opening.StartTime,
		End:          opening.EndTime,
		ExcludeIDs:   excluded,
	}
}

// Rank returns the eligible candidates for the query in offer order.
func (s *RotationService) Rank(ctx context.Context, q models.EligibilityQuery) ([]models.StaffMember, error) {
	members, err := s.source.EligibleCandidates(ctx, q)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load eligible candidates")
	}
	return RankCandidates(members), nil
}

// Offer ranks candidates for an opening and dispatches offers: the top candidate only in
// sequential mode, everyone in broadcast mode.
func (s *RotationService) Offer(ctx context.Context, opening *models.CoverageOpening, mode models.OfferMode, exclude ...string) ([]models.CoverageOffer, error) {
	ranked, err := s.Rank(ctx, EligibilityFor(opening, exclude...))
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		s.logger.Warn("no eligible candidates for opening",
			zap.String("opening_id", opening.ID), zap.String("school", opening.SchoolCode), zap.String("department", opening.Department))
		return nil, nil
	}
	if mode != models.OfferModeBroadcast {
		mode = models.OfferModeSequential
		ranked = ranked[:1]
	}
	return s.dispatcher.Dispatch(ctx, opening, ranked, mode)
}

// DefaultOfferMode broadcasts emergency openings and offers everything else sequentially.
func DefaultOfferMode(kind models.OpeningKind) models.OfferMode {
	if kind == models.OpeningKindEmergency {
		return models.OfferModeBroadcast
	}
	return models.OfferModeSequential
}
