package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"hazard-reporting-system/services/auth-service/identity"
	"hazard-reporting-system/services/hazard-service/models"
	"hazard-reporting-system/services/hazard-service/repository"
)

// Point awards and the level rule.
const (
	PointsValidatedReport = 10
	PointsNGOResolution   = 5
	PointsVote            = 1

	ValidVoteThreshold   = 3
	InvalidVoteThreshold = 3

	pointsPerLevel = 10
)

const minDescriptionLength = 10

// EventSink receives hazard lifecycle events. A nil sink disables
// publishing.
type EventSink interface {
	Publish(ctx context.Context, event models.HazardEvent) error
}

// Actor is the authenticated identity behind an operation. An empty ID
// means the caller is not logged in.
type Actor struct {
	ID   string
	Role string
}

// Engine applies the peer-validation and reputation rules on top of the
// storage ports. All mutating operations run under a single mutex: the
// engine is the single-writer serialization point that keeps the
// one-counted-vote-per-user invariant under concurrent requests. The
// version counters on stored records are the backstop against out-of-band
// writers.
type Engine struct {
	mu      sync.Mutex
	hazards repository.HazardStore
	ledger  repository.UserLedger
	events  EventSink

	now    func() time.Time
	lastID int64
}

func New(hazards repository.HazardStore, ledger repository.UserLedger, events EventSink) *Engine {
	return &Engine{
		hazards: hazards,
		ledger:  ledger,
		events:  events,
		now:     time.Now,
	}
}

type SubmitInput struct {
	Description string
	Type        string
	Latitude    *float64
	Longitude   *float64
	ImageURL    string
}

// Submit records a new hazard report in the initial pending/pending state
// and guarantees the reporter exists in the ledger.
func (e *Engine) Submit(ctx context.Context, actor Actor, input SubmitInput) (*models.Hazard, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthenticated
	}

	description := strings.TrimSpace(input.Description)
	if description == "" || input.Type == "" || input.Latitude == nil || input.Longitude == nil {
		return nil, fmt.Errorf("%w: description, type and location are required", ErrValidationFailed)
	}
	if len(description) < minDescriptionLength {
		return nil, fmt.Errorf("%w: description must be at least %d characters", ErrValidationFailed, minDescriptionLength)
	}
	urgency, err := UrgencyOf(input.Type)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.ledger.Ensure(ctx, actor.ID, actor.Role); err != nil {
		return nil, fmt.Errorf("failed to ensure reporter: %w", err)
	}

	now := e.now().UTC()
	hazard := &models.Hazard{
		ID:               e.nextID(now),
		Reporter:         actor.ID,
		Description:      description,
		Type:             input.Type,
		Latitude:         *input.Latitude,
		Longitude:        *input.Longitude,
		ImageURL:         input.ImageURL,
		Status:           models.StatusPending,
		ValidationStatus: models.ValidationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.hazards.Insert(ctx, hazard); err != nil {
		return nil, fmt.Errorf("failed to insert hazard: %w", err)
	}

	e.publish(ctx, models.HazardEvent{
		Kind:        models.EventSubmitted,
		HazardID:    hazard.ID,
		Type:        hazard.Type,
		Urgency:     urgency,
		Description: hazard.Description,
		Reporter:    hazard.Reporter,
		Status:      hazard.Status,
		CreatedAt:   now,
	})

	return hazard, nil
}

// CastVote applies one peer-validation vote. A duplicate vote is rejected
// before any state changes, so it produces no side effects at all. When the
// valid-vote count first reaches the threshold the report becomes valid,
// terminally, and the reporter is awarded exactly once. Every counted vote
// pays the voter one point.
func (e *Engine) CastVote(ctx context.Context, hazardID int64, actor Actor, isValid bool, solutionText string) (*models.Hazard, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthenticated
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	hazard, err := e.hazards.FindByID(ctx, hazardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if _, err := e.ledger.Ensure(ctx, actor.ID, actor.Role); err != nil {
		return nil, fmt.Errorf("failed to ensure voter: %w", err)
	}

	if hazard.HasVoted(actor.ID) {
		return nil, ErrDuplicateVote
	}

	if isValid {
		hazard.ValidVotes++
	} else {
		hazard.InvalidVotes++
	}
	hazard.VotedBy = append(hazard.VotedBy, actor.ID)

	if solution := strings.TrimSpace(solutionText); isValid && solution != "" {
		hazard.Solutions = append(hazard.Solutions, models.Solution{
			Validator: actor.ID,
			Text:      solution,
		})
	}

	becameValid := false
	if hazard.ValidationStatus == models.ValidationPending {
		switch {
		case hazard.ValidVotes >= ValidVoteThreshold:
			hazard.ValidationStatus = models.ValidationValid
			becameValid = true
		case hazard.InvalidVotes >= InvalidVoteThreshold:
			hazard.ValidationStatus = models.ValidationInvalid
		}
	}
	hazard.UpdatedAt = e.now().UTC()

	if err := e.hazards.Update(ctx, hazard); err != nil {
		return nil, fmt.Errorf("failed to update hazard: %w", err)
	}

	if becameValid {
		if err := e.award(ctx, hazard.Reporter, PointsValidatedReport); err != nil {
			return nil, err
		}
		urgency, _ := UrgencyOf(hazard.Type)
		e.publish(ctx, models.HazardEvent{
			Kind:        models.EventValidated,
			HazardID:    hazard.ID,
			Type:        hazard.Type,
			Urgency:     urgency,
			Description: hazard.Description,
			Reporter:    hazard.Reporter,
			Actor:       actor.ID,
			Status:      hazard.Status,
			CreatedAt:   e.now().UTC(),
		})
	}

	if err := e.award(ctx, actor.ID, PointsVote); err != nil {
		return nil, err
	}

	return hazard, nil
}

// Resolve sets the operational status of a hazard. Resolution by an NGO
// account pays the resolver; the decision is made on the ledger record's
// explicit role, never on the id prefix.
func (e *Engine) Resolve(ctx context.Context, hazardID int64, actor Actor, newStatus string) (*models.Hazard, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthenticated
	}
	if newStatus != models.StatusPending && newStatus != models.StatusResolved {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, newStatus)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	hazard, err := e.hazards.FindByID(ctx, hazardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	resolver, err := e.ledger.Ensure(ctx, actor.ID, actor.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure resolver: %w", err)
	}

	hazard.Status = newStatus
	hazard.ResolvedBy = actor.ID
	hazard.UpdatedAt = e.now().UTC()

	if err := e.hazards.Update(ctx, hazard); err != nil {
		return nil, fmt.Errorf("failed to update hazard: %w", err)
	}

	if newStatus == models.StatusResolved && resolver.Role == identity.RoleNGO {
		if err := e.award(ctx, actor.ID, PointsNGOResolution); err != nil {
			return nil, err
		}
	}

	urgency, _ := UrgencyOf(hazard.Type)
	e.publish(ctx, models.HazardEvent{
		Kind:        models.EventResolved,
		HazardID:    hazard.ID,
		Type:        hazard.Type,
		Urgency:     urgency,
		Description: hazard.Description,
		Reporter:    hazard.Reporter,
		Actor:       actor.ID,
		Status:      hazard.Status,
		CreatedAt:   e.now().UTC(),
	})

	return hazard, nil
}

// ListPending returns reports still awaiting peer review, in submission
// order.
func (e *Engine) ListPending(ctx context.Context) ([]models.Hazard, error) {
	return e.hazards.ListByValidation(ctx, models.ValidationPending)
}

// ListValidated returns peer-validated reports sorted by urgency
// descending, ties broken by id descending (most recent first). A stored
// report with a type outside the urgency table fails the whole listing.
func (e *Engine) ListValidated(ctx context.Context) ([]models.Hazard, error) {
	hazards, err := e.hazards.ListByValidation(ctx, models.ValidationValid)
	if err != nil {
		return nil, err
	}

	urgencies := make([]int, len(hazards))
	for i := range hazards {
		urgency, err := UrgencyOf(hazards[i].Type)
		if err != nil {
			return nil, err
		}
		urgencies[i] = urgency
	}

	type ranked struct {
		hazard  models.Hazard
		urgency int
	}
	items := make([]ranked, len(hazards))
	for i := range hazards {
		items[i] = ranked{hazard: hazards[i], urgency: urgencies[i]}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].urgency != items[j].urgency {
			return items[i].urgency > items[j].urgency
		}
		return items[i].hazard.ID > items[j].hazard.ID
	})
	for i := range items {
		hazards[i] = items[i].hazard
	}

	return hazards, nil
}

// GetUser returns the ledger record for a user id.
func (e *Engine) GetUser(ctx context.Context, id string) (*models.UserRecord, error) {
	record, err := e.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return record, nil
}

// EnsureUser idempotently creates the ledger record for a user id.
func (e *Engine) EnsureUser(ctx context.Context, actor Actor) (*models.UserRecord, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthenticated
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Ensure(ctx, actor.ID, actor.Role)
}

// Stats summarizes the store for the admin dashboard.
type Stats struct {
	Pending    int `json:"pending"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	TotalUsers int `json:"total_users"`
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for _, entry := range []struct {
		status string
		out    *int
	}{
		{models.ValidationPending, &stats.Pending},
		{models.ValidationValid, &stats.Valid},
		{models.ValidationInvalid, &stats.Invalid},
	} {
		hazards, err := e.hazards.ListByValidation(ctx, entry.status)
		if err != nil {
			return nil, err
		}
		*entry.out = len(hazards)
	}

	records, err := e.ledger.All(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalUsers = len(records)

	return stats, nil
}

// award adds delta points and recomputes the level. The caller holds the
// engine mutex and has ensured the user exists; ErrUserNotFound here means
// the store was modified out of band.
func (e *Engine) award(ctx context.Context, userID string, delta int) error {
	record, err := e.ledger.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return err
	}

	record.Points += delta
	record.Level = record.Points/pointsPerLevel + 1

	if err := e.ledger.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to persist award for %s: %w", userID, err)
	}
	return nil
}

// nextID derives a creation-time id that is strictly increasing across the
// process, keeping tie-break ordering well-defined for same-instant
// submissions.
func (e *Engine) nextID(now time.Time) int64 {
	id := now.UnixNano()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id
	return id
}

func (e *Engine) publish(ctx context.Context, event models.HazardEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		log.Printf("[WARN] Failed to publish %s event for hazard %d: %v", event.Kind, event.HazardID, err)
	}
}
