package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/models"
	"github.com/wrenchway/backend/internal/upstream"
)

type SyncService struct {
	Store    *db.Store
	Upstream upstream.Client
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// NewFromUpstream materializes a freshly synced record. Local-only
// fields start empty and status starts at pending.
func NewFromUpstream(in upstream.Appointment, now time.Time) models.Appointment {
	return models.Appointment{
		AppointmentID: in.AppointmentID,
		CustomerID:    in.CustomerID,
		VehicleID:     in.VehicleID,
		Brand:         in.Brand,
		Model:         in.Model,
		Mileage:       in.Mileage,
		Notes:         in.Notes,
		ScheduledAt:   in.ScheduledAt,
		PredictedEnd:  in.PredictedEnd,
		Status:        models.AppointmentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MergeUpstream folds upstream-owned fields into the local row and
// reports whether anything actually changed. Technician, start/end and
// locally advanced status are never touched, which is what makes a
// repeated sync a no-op and an assignment survive later syncs.
func MergeUpstream(local models.Appointment, in upstream.Appointment) (models.Appointment, bool) {
	changed := local.CustomerID != in.CustomerID ||
		local.VehicleID != in.VehicleID ||
		local.Brand != in.Brand ||
		local.Model != in.Model ||
		local.Mileage != in.Mileage ||
		local.Notes != in.Notes ||
		!local.ScheduledAt.Equal(in.ScheduledAt) ||
		!equalTimePtr(local.PredictedEnd, in.PredictedEnd)
	if !changed {
		return local, false
	}
	local.CustomerID = in.CustomerID
	local.VehicleID = in.VehicleID
	local.Brand = in.Brand
	local.Model = in.Model
	local.Mileage = in.Mileage
	local.Notes = in.Notes
	local.ScheduledAt = in.ScheduledAt
	local.PredictedEnd = in.PredictedEnd
	return local, true
}

// Sync runs one reconciliation pass and records it in sync_runs, no
// matter which entry point (HTTP or the scheduler) triggered it.
func (s *SyncService) Sync(ctx context.Context, full bool) (models.SyncSummary, error) {
	runID, err := s.Store.CreateSyncRun(ctx)
	if err != nil {
		return models.SyncSummary{}, fmt.Errorf("create sync run: %w", err)
	}

	summary, err := s.reconcile(ctx, full)
	status := "SUCCESS"
	if err != nil {
		status = "FAILED"
	}
	b, _ := json.Marshal(summary)
	if finishErr := s.Store.FinishSyncRun(ctx, runID, status, b); finishErr != nil {
		s.Logger.Error().Err(finishErr).Str("run_id", runID).Msg("failed to finish sync run")
	}
	return summary, err
}

// reconcile pulls the candidate set and reconciles record by record. A
// bad record is counted and skipped, never aborting the rest of the
// batch.
func (s *SyncService) reconcile(ctx context.Context, full bool) (models.SyncSummary, error) {
	var (
		records []upstream.Appointment
		err     error
	)
	if full {
		records, err = s.Upstream.ListAllAppointments(ctx)
	} else {
		records, err = s.Upstream.ListNewAppointments(ctx)
	}
	if err != nil {
		return models.SyncSummary{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	summary := models.SyncSummary{}
	for _, in := range records {
		if err := s.Validate.Struct(in); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("appointment %q: %v", in.AppointmentID, err))
			continue
		}
		if err := s.upsert(ctx, in, &summary); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("appointment %q: %v", in.AppointmentID, err))
		}
	}

	s.Logger.Info().
		Bool("full", full).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("appointment sync finished")
	return summary, nil
}

func (s *SyncService) upsert(ctx context.Context, in upstream.Appointment, summary *models.SyncSummary) error {
	local, err := s.Store.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		inserted, err := s.Store.InsertAppointment(ctx, NewFromUpstream(in, time.Now().UTC()))
		if err != nil {
			return err
		}
		if inserted {
			summary.Inserted++
			return nil
		}
		// Racing sync inserted it first; merge against the fresh row.
		local, err = s.Store.GetAppointment(ctx, in.AppointmentID)
		if err != nil {
			return err
		}
	}

	merged, changed := MergeUpstream(local, in)
	if !changed {
		summary.Skipped++
		return nil
	}
	if err := s.Store.UpdateAppointmentUpstream(ctx, merged); err != nil {
		return err
	}
	summary.Updated++
	return nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
