package models

import "time"

// Operational status of a hazard report.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// Peer-review outcome, distinct from the operational status. Once a report
// leaves "pending" the outcome is terminal.
const (
	ValidationPending = "pending"
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"
)

type Solution struct {
	Validator string `bson:"validator" json:"validator"`
	Text      string `bson:"text" json:"text"`
}

type Hazard struct {
	ID               int64      `bson:"_id" json:"id"`
	Reporter         string     `bson:"reporter" json:"reporter"`
	Description      string     `bson:"description" json:"description"`
	Type             string     `bson:"type" json:"type"`
	Latitude         float64    `bson:"latitude" json:"latitude"`
	Longitude        float64    `bson:"longitude" json:"longitude"`
	ImageURL         string     `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Status           string     `bson:"status" json:"status"`
	ValidationStatus string     `bson:"validation_status" json:"validation_status"`
	ValidVotes       int        `bson:"valid_votes" json:"valid_votes"`
	InvalidVotes     int        `bson:"invalid_votes" json:"invalid_votes"`
	VotedBy          []string   `bson:"voted_by,omitempty" json:"-"`
	ResolvedBy       string     `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	Solutions        []Solution `bson:"solutions,omitempty" json:"solutions,omitempty"`
	Version          int64      `bson:"version" json:"-"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// HasVoted reports whether the user already cast a counted vote, regardless
// of the vote's value.
func (h *Hazard) HasVoted(userID string) bool {
	for _, v := range h.VotedBy {
		if v == userID {
			return true
		}
	}
	return false
}

// UserRecord is one ledger entry: accumulated points and the level derived
// from them (level = points/10 + 1).
type UserRecord struct {
	ID        string    `bson:"_id" json:"user"`
	Role      string    `bson:"role" json:"role"`
	Points    int       `bson:"points" json:"points"`
	Level     int       `bson:"level" json:"level"`
	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"-"`
	UpdatedAt time.Time `bson:"updated_at" json:"-"`
}

// Event kinds published to RabbitMQ.
const (
	EventSubmitted = "hazard.submitted"
	EventValidated = "hazard.validated"
	EventResolved  = "hazard.resolved"
)

type HazardEvent struct {
	Kind        string    `json:"kind"`
	HazardID    int64     `json:"hazard_id"`
	Type        string    `json:"type"`
	Urgency     int       `json:"urgency"`
	Description string    `json:"description"`
	Reporter    string    `json:"reporter"`
	Actor       string    `json:"actor,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
