package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hazard-reporting-system/services/auth-service/identity"
	"hazard-reporting-system/services/hazard-service/models"
	"hazard-reporting-system/services/hazard-service/repository"
)

type captureSink struct {
	events []models.HazardEvent
}

func (s *captureSink) Publish(ctx context.Context, event models.HazardEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) countKind(kind string) int {
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*Engine, *repository.MemoryUserLedger, *captureSink) {
	t.Helper()
	ledger := repository.NewMemoryUserLedger()
	sink := &captureSink{}
	e := New(repository.NewMemoryHazardStore(), ledger, sink)
	return e, ledger, sink
}

func floatPtr(f float64) *float64 { return &f }

func validInput() SubmitInput {
	return SubmitInput{
		Description: "Exposed wiring near the east gate",
		Type:        "Electrical Hazard",
		Latitude:    floatPtr(12.97),
		Longitude:   floatPtr(77.59),
	}
}

func mustSubmit(t *testing.T, e *Engine, actor Actor) *models.Hazard {
	t.Helper()
	hazard, err := e.Submit(context.Background(), actor, validInput())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return hazard
}

func checkLevelInvariant(t *testing.T, ledger *repository.MemoryUserLedger) {
	t.Helper()
	records, err := ledger.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	for _, r := range records {
		want := r.Points/10 + 1
		if r.Level != want {
			t.Fatalf("user %s: level = %d, want %d (points = %d)", r.ID, r.Level, want, r.Points)
		}
	}
}

func TestSubmitValidation(t *testing.T) {
	testCases := []struct {
		name    string
		actor   Actor
		mutate  func(*SubmitInput)
		wantErr error
	}{
		{
			name:    "not logged in",
			actor:   Actor{},
			mutate:  func(in *SubmitInput) {},
			wantErr: ErrNotAuthenticated,
		},
		{
			name:  "nine character description",
			actor: Actor{ID: "alice1", Role: identity.RoleCitizen},
			mutate: func(in *SubmitInput) {
				in.Description = "123456789"
			},
			wantErr: ErrValidationFailed,
		},
		{
			name:  "ten character description",
			actor: Actor{ID: "alice1", Role: identity.RoleCitizen},
			mutate: func(in *SubmitInput) {
				in.Description = "1234567890"
			},
		},
		{
			name:  "missing latitude",
			actor: Actor{ID: "alice1", Role: identity.RoleCitizen},
			mutate: func(in *SubmitInput) {
				in.Latitude = nil
			},
			wantErr: ErrValidationFailed,
		},
		{
			name:  "missing type",
			actor: Actor{ID: "alice1", Role: identity.RoleCitizen},
			mutate: func(in *SubmitInput) {
				in.Type = ""
			},
			wantErr: ErrValidationFailed,
		},
		{
			name:  "unknown type fails closed",
			actor: Actor{ID: "alice1", Role: identity.RoleCitizen},
			mutate: func(in *SubmitInput) {
				in.Type = "Meteor Strike"
			},
			wantErr: ErrUnknownHazardType,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			input := validInput()
			testCase.mutate(&input)

			hazard, err := e.Submit(context.Background(), testCase.actor, input)
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, testCase.wantErr)
			}
			if testCase.wantErr == nil {
				if hazard.Status != models.StatusPending || hazard.ValidationStatus != models.ValidationPending {
					t.Fatalf("new hazard state = %s/%s, want pending/pending", hazard.Status, hazard.ValidationStatus)
				}
			}
		})
	}
}

func TestSubmitAssignsStrictlyIncreasingIDs(t *testing.T) {
	e, _, _ := newTestEngine(t)
	// Freeze the clock so same-instant submissions exercise the guard.
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	first := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})
	second := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})

	if second.ID <= first.ID {
		t.Fatalf("ids not strictly increasing: %d then %d", first.ID, second.ID)
	}
}

func TestSubmitEnsuresReporterInLedger(t *testing.T) {
	e, ledger, sink := newTestEngine(t)
	mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})

	record, err := ledger.Get(context.Background(), "alice1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Points != 0 || record.Level != 1 {
		t.Fatalf("new reporter record = %d points level %d, want 0/1", record.Points, record.Level)
	}
	if got := sink.countKind(models.EventSubmitted); got != 1 {
		t.Fatalf("submitted events = %d, want 1", got)
	}
}

func TestCastVoteDuplicateHasZeroSideEffects(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})
	voter := Actor{ID: "bobby7", Role: identity.RoleCitizen}

	if _, err := e.CastVote(ctx, hazard.ID, voter, true, ""); err != nil {
		t.Fatalf("first CastVote() error = %v", err)
	}

	before, err := e.GetUser(ctx, voter.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}

	_, err = e.CastVote(ctx, hazard.ID, voter, false, "should not be recorded")
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("second CastVote() error = %v, want ErrDuplicateVote", err)
	}

	got, err := e.hazards.FindByID(ctx, hazard.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.ValidVotes != 1 || got.InvalidVotes != 0 {
		t.Fatalf("votes = %d/%d, want 1/0", got.ValidVotes, got.InvalidVotes)
	}
	if len(got.VotedBy) != 1 {
		t.Fatalf("len(VotedBy) = %d, want 1", len(got.VotedBy))
	}
	if len(got.Solutions) != 0 {
		t.Fatalf("len(Solutions) = %d, want 0", len(got.Solutions))
	}

	after, err := e.GetUser(ctx, voter.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if after.Points != before.Points {
		t.Fatalf("rejected vote changed points: %d -> %d", before.Points, after.Points)
	}
}

func TestCastVoteUnknownHazard(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CastVote(context.Background(), 404, Actor{ID: "bobby7"}, true, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("CastVote() error = %v, want ErrNotFound", err)
	}
}

func TestCastVoteRequiresLogin(t *testing.T) {
	e, _, _ := newTestEngine(t)
	hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})
	_, err := e.CastVote(context.Background(), hazard.ID, Actor{}, true, "")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("CastVote() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestValidThresholdAwardsReporterExactlyOnce(t *testing.T) {
	e, ledger, sink := newTestEngine(t)
	ctx := context.Background()
	reporter := Actor{ID: "alice1", Role: identity.RoleCitizen}
	hazard := mustSubmit(t, e, reporter)

	for i, voterID := range []string{"voter1", "voter2"} {
		got, err := e.CastVote(ctx, hazard.ID, Actor{ID: voterID, Role: identity.RoleCitizen}, true, "")
		if err != nil {
			t.Fatalf("vote %d error = %v", i+1, err)
		}
		if got.ValidationStatus != models.ValidationPending {
			t.Fatalf("status after %d votes = %s, want pending", i+1, got.ValidationStatus)
		}
		checkLevelInvariant(t, ledger)
	}

	got, err := e.CastVote(ctx, hazard.ID, Actor{ID: "voter3", Role: identity.RoleCitizen}, true, "")
	if err != nil {
		t.Fatalf("third vote error = %v", err)
	}
	if got.ValidationStatus != models.ValidationValid {
		t.Fatalf("status after third valid vote = %s, want valid", got.ValidationStatus)
	}

	record, err := e.GetUser(ctx, reporter.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if record.Points != 10 {
		t.Fatalf("reporter points = %d, want 10", record.Points)
	}
	if record.Level != 2 {
		t.Fatalf("reporter level = %d, want 2", record.Level)
	}

	// A fourth vote still counts for the voter but never re-awards the
	// reporter.
	if _, err := e.CastVote(ctx, hazard.ID, Actor{ID: "voter4", Role: identity.RoleCitizen}, true, ""); err != nil {
		t.Fatalf("fourth vote error = %v", err)
	}
	record, err = e.GetUser(ctx, reporter.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if record.Points != 10 {
		t.Fatalf("reporter points after fourth vote = %d, want 10", record.Points)
	}
	if got := sink.countKind(models.EventValidated); got != 1 {
		t.Fatalf("validated events = %d, want 1", got)
	}

	for _, voterID := range []string{"voter1", "voter2", "voter3", "voter4"} {
		record, err := e.GetUser(ctx, voterID)
		if err != nil {
			t.Fatalf("GetUser(%s) error = %v", voterID, err)
		}
		if record.Points != 1 {
			t.Fatalf("voter %s points = %d, want 1", voterID, record.Points)
		}
	}
	checkLevelInvariant(t, ledger)
}

func TestInvalidThresholdIsTerminal(t *testing.T) {
	e, _, sink := newTestEngine(t)
	ctx := context.Background()
	reporter := Actor{ID: "alice1", Role: identity.RoleCitizen}
	hazard := mustSubmit(t, e, reporter)

	for i := 1; i <= 3; i++ {
		got, err := e.CastVote(ctx, hazard.ID, Actor{ID: fmt.Sprintf("nayvtr%d", i), Role: identity.RoleCitizen}, false, "")
		if err != nil {
			t.Fatalf("vote %d error = %v", i, err)
		}
		if i < 3 && got.ValidationStatus != models.ValidationPending {
			t.Fatalf("status after %d votes = %s, want pending", i, got.ValidationStatus)
		}
		if i == 3 && got.ValidationStatus != models.ValidationInvalid {
			t.Fatalf("status after 3 invalid votes = %s, want invalid", got.ValidationStatus)
		}
	}

	// Terminal: a later run of valid votes never flips the outcome or pays
	// the reporter.
	for i := 1; i <= 3; i++ {
		got, err := e.CastVote(ctx, hazard.ID, Actor{ID: fmt.Sprintf("yeavtr%d", i), Role: identity.RoleCitizen}, true, "")
		if err != nil {
			t.Fatalf("late valid vote %d error = %v", i, err)
		}
		if got.ValidationStatus != models.ValidationInvalid {
			t.Fatalf("status flipped to %s after late valid votes", got.ValidationStatus)
		}
	}

	record, err := e.GetUser(ctx, reporter.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if record.Points != 0 {
		t.Fatalf("reporter points = %d, want 0", record.Points)
	}
	if got := sink.countKind(models.EventValidated); got != 0 {
		t.Fatalf("validated events = %d, want 0", got)
	}
}

func TestSolutionsAppendOnValidVotesOnly(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})

	if _, err := e.CastVote(ctx, hazard.ID, Actor{ID: "voter1"}, true, "  install a barrier  "); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if _, err := e.CastVote(ctx, hazard.ID, Actor{ID: "voter2"}, false, "ignored on invalid vote"); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	got, err := e.CastVote(ctx, hazard.ID, Actor{ID: "voter3"}, true, "   ")
	if err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}

	if len(got.Solutions) != 1 {
		t.Fatalf("len(Solutions) = %d, want 1", len(got.Solutions))
	}
	if got.Solutions[0].Validator != "voter1" || got.Solutions[0].Text != "install a barrier" {
		t.Fatalf("solution = %+v, want voter1/install a barrier", got.Solutions[0])
	}
}

func TestReporterMayVoteOnOwnReport(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	reporter := Actor{ID: "alice1", Role: identity.RoleCitizen}
	hazard := mustSubmit(t, e, reporter)

	got, err := e.CastVote(ctx, hazard.ID, reporter, true, "")
	if err != nil {
		t.Fatalf("self vote error = %v", err)
	}
	if got.ValidVotes != 1 {
		t.Fatalf("ValidVotes = %d, want 1", got.ValidVotes)
	}

	record, err := e.GetUser(ctx, reporter.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if record.Points != 1 {
		t.Fatalf("reporter points after self vote = %d, want 1", record.Points)
	}
}

func TestResolve(t *testing.T) {
	t.Run("ngo resolver is awarded", func(t *testing.T) {
		e, _, sink := newTestEngine(t)
		ctx := context.Background()
		hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})

		resolver := Actor{ID: "NGO_relief42", Role: identity.RoleNGO}
		got, err := e.Resolve(ctx, hazard.ID, resolver, models.StatusResolved)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Status != models.StatusResolved || got.ResolvedBy != resolver.ID {
			t.Fatalf("resolved state = %s by %s, want resolved by %s", got.Status, got.ResolvedBy, resolver.ID)
		}

		record, err := e.GetUser(ctx, resolver.ID)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if record.Points != 5 {
			t.Fatalf("resolver points = %d, want 5", record.Points)
		}
		if got := sink.countKind(models.EventResolved); got != 1 {
			t.Fatalf("resolved events = %d, want 1", got)
		}
	})

	t.Run("citizen resolver is not awarded", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		ctx := context.Background()
		hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})

		resolver := Actor{ID: "bobby7", Role: identity.RoleCitizen}
		if _, err := e.Resolve(ctx, hazard.ID, resolver, models.StatusResolved); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}

		record, err := e.GetUser(ctx, resolver.ID)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if record.Points != 0 {
			t.Fatalf("citizen resolver points = %d, want 0", record.Points)
		}
	})

	t.Run("unknown hazard", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		_, err := e.Resolve(context.Background(), 404, Actor{ID: "bobby7"}, models.StatusResolved)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})
		_, err := e.Resolve(context.Background(), hazard.ID, Actor{ID: "bobby7"}, "closed")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Resolve() error = %v, want ErrValidationFailed", err)
		}
	})

	t.Run("requires login", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		hazard := mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})
		_, err := e.Resolve(context.Background(), hazard.ID, Actor{}, models.StatusResolved)
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("Resolve() error = %v, want ErrNotAuthenticated", err)
		}
	})
}

func seedValidated(t *testing.T, store repository.HazardStore, id int64, hazardType string) {
	t.Helper()
	err := store.Insert(context.Background(), &models.Hazard{
		ID:               id,
		Reporter:         "alice1",
		Description:      "seeded validated hazard",
		Type:             hazardType,
		Status:           models.StatusPending,
		ValidationStatus: models.ValidationValid,
		ValidVotes:       3,
		VotedBy:          []string{"voter1", "voter2", "voter3"},
		CreatedAt:        time.Unix(id, 0),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
}

func TestListValidatedOrdering(t *testing.T) {
	store := repository.NewMemoryHazardStore()
	e := New(store, repository.NewMemoryUserLedger(), nil)

	seedValidated(t, store, 10, "Physical Hazard") // urgency 5
	seedValidated(t, store, 5, "Flood")            // urgency 3
	seedValidated(t, store, 8, "Earthquake")       // urgency 3

	got, err := e.ListValidated(context.Background())
	if err != nil {
		t.Fatalf("ListValidated() error = %v", err)
	}

	wantIDs := []int64{10, 8, 5}
	if len(got) != len(wantIDs) {
		t.Fatalf("len = %d, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("position %d: id = %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestListValidatedFailsClosedOnUnknownType(t *testing.T) {
	store := repository.NewMemoryHazardStore()
	e := New(store, repository.NewMemoryUserLedger(), nil)

	seedValidated(t, store, 1, "Physical Hazard")
	seedValidated(t, store, 2, "Meteor Strike")

	_, err := e.ListValidated(context.Background())
	if !errors.Is(err, ErrUnknownHazardType) {
		t.Fatalf("ListValidated() error = %v, want ErrUnknownHazardType", err)
	}
}

func TestListPendingFiltersByValidationStatus(t *testing.T) {
	store := repository.NewMemoryHazardStore()
	e := New(store, repository.NewMemoryUserLedger(), nil)
	ctx := context.Background()

	mustSubmit(t, e, Actor{ID: "alice1", Role: identity.RoleCitizen})
	seedValidated(t, store, 1, "Flood")

	got, err := e.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(got))
	}
	if got[0].ValidationStatus != models.ValidationPending {
		t.Fatalf("pending list contains %s entry", got[0].ValidationStatus)
	}
}
