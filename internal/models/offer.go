package models

import "time"

// OfferMode says whether an opening went to the top candidate or to everyone eligible.
type OfferMode string

const (
	OfferModeSequential OfferMode = "sequential"
	OfferModeBroadcast  OfferMode = "broadcast"
)

// CoverageOffer records that an opening was offered to a candidate.
type CoverageOffer struct {
	ID          string    `db:"id" json:"id"`
	OpeningID   string    `db:"opening_id" json:"opening_id"`
	CandidateID string    `db:"candidate_id" json:"candidate_id"`
	Rank        int       `db:"rank" json:"rank"`
	Mode        OfferMode `db:"mode" json:"mode"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OpenOffer is an offer whose opening is still open, with the slot details a candidate needs.
type OpenOffer struct {
	CoverageOffer
	ClassName  string      `db:"class_name" json:"class_name"`
	SchoolCode string      `db:"school_code" json:"school_code"`
	Date       time.Time   `db:"date" json:"date"`
	StartTime  time.Time   `db:"start_time" json:"start_time"`
	EndTime    time.Time   `db:"end_time" json:"end_time"`
	Kind       OpeningKind `db:"kind" json:"kind"`
	Urgent     bool        `db:"urgent" json:"urgent"`
}
