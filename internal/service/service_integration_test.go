package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/models"
	"github.com/wrenchway/backend/internal/upstream"
)

func testStore(t *testing.T) *db.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := db.New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func seedRequest(t *testing.T, store *db.Store) models.Request {
	t.Helper()
	r := models.Request{
		ID:         uuid.NewString(),
		CustomerID: "cust-it",
		Status:     models.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.CreateRequest(context.Background(), r); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func seedTechnician(t *testing.T, store *db.Store, name string) models.Technician {
	t.Helper()
	tech := models.Technician{
		ID:        uuid.NewString(),
		Name:      name,
		Tasks:     []models.Task{},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateTechnician(context.Background(), tech); err != nil {
		t.Fatalf("create technician: %v", err)
	}
	return tech
}

func TestAssignRequestNoDoubleBooking(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	svc := &AssignmentService{Store: store, Logger: zerolog.Nop(), DefaultJobDuration: 2 * time.Hour}

	tech := seedTechnician(t, store, "IT Solo")
	first := seedRequest(t, store)
	second := seedRequest(t, store)

	assigned, err := svc.AssignRequest(ctx, first.ID, tech.ID, false)
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if assigned.TechnicianID == nil || *assigned.TechnicianID != tech.ID {
		t.Fatalf("first assign did not bind technician: %+v", assigned)
	}

	// Same technician, same two-hour window starting now.
	_, err = svc.AssignRequest(ctx, second.ID, tech.ID, false)
	if !errors.Is(err, ErrTechnicianUnavailable) {
		t.Fatalf("overlapping assign must fail with ErrTechnicianUnavailable, got %v", err)
	}

	fresh, err := store.GetTechnician(ctx, tech.ID)
	if err != nil {
		t.Fatalf("get technician: %v", err)
	}
	if len(fresh.Tasks) != 1 || fresh.Tasks[0].JobID != first.ID {
		t.Fatalf("losing assign must not leave a task behind: %+v", fresh.Tasks)
	}
}

func TestReassignReleasesPreviousTechnician(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	svc := &AssignmentService{Store: store, Logger: zerolog.Nop(), DefaultJobDuration: 2 * time.Hour}

	oldTech := seedTechnician(t, store, "IT Old")
	newTech := seedTechnician(t, store, "IT New")
	r := seedRequest(t, store)

	if _, err := svc.AssignRequest(ctx, r.ID, oldTech.ID, false); err != nil {
		t.Fatalf("initial assign: %v", err)
	}
	reassigned, err := svc.AssignRequest(ctx, r.ID, newTech.ID, true)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if reassigned.TechnicianID == nil || *reassigned.TechnicianID != newTech.ID {
		t.Fatalf("reassign did not move the request: %+v", reassigned)
	}

	freedTech, err := store.GetTechnician(ctx, oldTech.ID)
	if err != nil {
		t.Fatalf("get old technician: %v", err)
	}
	for _, task := range freedTech.Tasks {
		if task.JobID == r.ID {
			t.Fatalf("displaced technician still holds the job's task: %+v", freedTech.Tasks)
		}
	}
	if Overlaps(freedTech.Tasks, time.Now().UTC(), time.Now().UTC().Add(time.Hour)) {
		t.Fatal("displaced technician must be available again for the window")
	}

	bound, err := store.GetTechnician(ctx, newTech.ID)
	if err != nil {
		t.Fatalf("get new technician: %v", err)
	}
	if len(bound.Tasks) != 1 || bound.Tasks[0].JobID != r.ID {
		t.Fatalf("new technician should hold exactly the job's task: %+v", bound.Tasks)
	}
}

type fixedUpstream struct {
	items []upstream.Appointment
	err   error
}

func (f fixedUpstream) ListNewAppointments(context.Context) ([]upstream.Appointment, error) {
	return f.items, f.err
}

func (f fixedUpstream) ListAllAppointments(context.Context) ([]upstream.Appointment, error) {
	return f.items, f.err
}

func TestSyncRecordsRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	item := upstream.Appointment{
		AppointmentID: uuid.NewString(),
		CustomerID:    "cust-it",
		VehicleID:     "veh-it",
		ScheduledAt:   time.Now().UTC().Add(24 * time.Hour),
	}
	svc := &SyncService{
		Store:    store,
		Upstream: fixedUpstream{items: []upstream.Appointment{item}},
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
	}

	summary, err := svc.Sync(ctx, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("expected one insert, got %+v", summary)
	}

	run, err := store.GetLatestSyncRun(ctx)
	if err != nil {
		t.Fatalf("latest run after sync: %v", err)
	}
	if run.Status != "SUCCESS" || run.FinishedAt == nil {
		t.Fatalf("run not recorded as finished success: %+v", run)
	}
}

func TestSyncRecordsFailedRunOnUpstreamError(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	svc := &SyncService{
		Store:    store,
		Upstream: fixedUpstream{err: fmt.Errorf("connection refused")},
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
	}

	_, err := svc.Sync(ctx, false)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}

	run, err := store.GetLatestSyncRun(ctx)
	if err != nil {
		t.Fatalf("latest run after failed sync: %v", err)
	}
	if run.Status != "FAILED" || run.FinishedAt == nil {
		t.Fatalf("failed fetch must still be recorded as a finished run: %+v", run)
	}
}
