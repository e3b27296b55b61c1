package repository

import (
	"context"
	"errors"

	"hazard-reporting-system/services/hazard-service/models"
)

var (
	// ErrNotFound is returned when a record id is unknown to the store.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when an update loses a compare-and-swap
	// race against a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicateID is returned when an insert reuses an existing id.
	ErrDuplicateID = errors.New("duplicate id")
)

// HazardStore persists hazard reports with per-record operations. Updates
// are compare-and-swap on the record's version counter, so a lost race
// surfaces as ErrVersionConflict instead of a silently dropped write.
type HazardStore interface {
	Insert(ctx context.Context, hazard *models.Hazard) error
	FindByID(ctx context.Context, id int64) (*models.Hazard, error)
	Update(ctx context.Context, hazard *models.Hazard) error
	ListByValidation(ctx context.Context, validationStatus string) ([]models.Hazard, error)
}

// UserLedger persists per-user point balances. Ensure is idempotent and
// never resets an existing record.
type UserLedger interface {
	Ensure(ctx context.Context, id, role string) (*models.UserRecord, error)
	Get(ctx context.Context, id string) (*models.UserRecord, error)
	Update(ctx context.Context, record *models.UserRecord) error
	All(ctx context.Context) ([]models.UserRecord, error)
}
