package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coverage-api/internal/models"
)

// OfferRepository records which candidates were offered an opening.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository constructs an OfferRepository.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// CreateBatch records offers in one transaction. A candidate who was already offered the opening
// keeps the stored offer, refreshed with the new rank and mode, and its id is written back.
func (r *OfferRepository) CreateBatch(ctx context.Context, offers []models.CoverageOffer) (err error) {
	if len(offers) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offers tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO coverage_offers (id, opening_id, candidate_id, rank, mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (opening_id, candidate_id) DO UPDATE SET rank = EXCLUDED.rank, mode = EXCLUDED.mode
		RETURNING id, created_at`
	now := time.Now().UTC()
	for i := range offers {
		offer := &offers[i]
		if offer.ID == "" {
			offer.ID = uuid.NewString()
		}
		var stored struct {
			ID        string    `db:"id"`
			CreatedAt time.Time `db:"created_at"`
		}
		if err = tx.GetContext(ctx, &stored, query,
			offer.ID, offer.OpeningID, offer.CandidateID, offer.Rank, offer.Mode, now); err != nil {
			return fmt.Errorf("create offer: %w", err)
		}
		offer.ID = stored.ID
		offer.CreatedAt = stored.CreatedAt
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit offers tx: %w", err)
	}
	return nil
}

// ListOpenForCandidate returns offers made to a candidate whose openings are still open.
func (r *OfferRepository) ListOpenForCandidate(ctx context.Context, candidateID string) ([]models.OpenOffer, error) {
	const query = `SELECT f.id, f.opening_id, f.candidate_id, f.rank, f.mode, f.created_at,
		o.class_name, o.school_code, o.date, o.start_time, o.end_time, o.kind, o.urgent
		FROM coverage_offers f
		JOIN coverage_openings o ON o.id = f.opening_id
		WHERE f.candidate_id = $1 AND o.status = 'open'
		ORDER BY o.urgent DESC, o.start_time`
	var offers []models.OpenOffer
	if err := r.db.SelectContext(ctx, &offers, query, candidateID); err != nil {
		return nil, fmt.Errorf("list open offers: %w", err)
	}
	return offers, nil
}
