package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/events"
	"github.com/wrenchway/backend/internal/models"
)

const defaultAppointmentWindow = 24 * time.Hour

type AssignmentService struct {
	Store  *db.Store
	Events *events.Publisher
	Logger zerolog.Logger

	// DefaultJobDuration sizes the reserved window for roadside
	// requests, which carry no schedule of their own.
	DefaultJobDuration time.Duration
}

// AppointmentWindow derives the slot to reserve on the technician's
// calendar. Upstream may omit the predicted end; a day is assumed then.
func AppointmentWindow(a models.Appointment, now time.Time) (time.Time, time.Time) {
	start := a.ScheduledAt
	if start.IsZero() {
		start = now
	}
	if a.PredictedEnd != nil && a.PredictedEnd.After(start) {
		return start, *a.PredictedEnd
	}
	return start, start.Add(defaultAppointmentWindow)
}

// AssignAppointment binds a technician to an appointment. The task
// append and the appointment update commit in one transaction, so a
// conflicting concurrent assignment rolls back whole. A version race on
// the technician row is retried once before giving up.
func (s *AssignmentService) AssignAppointment(ctx context.Context, appointmentID, technicianID string, reassign bool) (models.Appointment, error) {
	a, err := s.Store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, &NotFoundError{Kind: "appointment", ID: appointmentID}
		}
		return models.Appointment{}, err
	}
	if a.TechnicianID != nil && !reassign {
		return models.Appointment{}, ErrAlreadyAssigned
	}

	start, end := AppointmentWindow(a, time.Now().UTC())
	task := models.Task{
		JobID:       appointmentID,
		StartDate:   start,
		WorkMinutes: int(end.Sub(start) / time.Minute),
		SubStatus:   "scheduled",
	}
	if err := s.reserve(ctx, technicianID, task, a.TechnicianID, func(tx pgx.Tx) (bool, error) {
		return s.Store.AssignAppointment(ctx, tx, appointmentID, technicianID, start, end, reassign)
	}); err != nil {
		return models.Appointment{}, err
	}

	s.Logger.Info().
		Str("appointment_id", appointmentID).
		Str("technician_id", technicianID).
		Time("start", start).
		Time("end", end).
		Msg("appointment assigned")
	s.Events.Publish(ctx, "assignment.appointment", events.Event{
		Kind:         "appointment.assigned",
		JobID:        appointmentID,
		TechnicianID: technicianID,
	})
	return s.Store.GetAppointment(ctx, appointmentID)
}

// AssignRequest dispatches a technician to a roadside request and moves
// it pending -> assigned in the same transaction as the task append.
func (s *AssignmentService) AssignRequest(ctx context.Context, requestID, technicianID string, reassign bool) (models.Request, error) {
	r, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Request{}, &NotFoundError{Kind: "request", ID: requestID}
		}
		return models.Request{}, err
	}
	if r.TechnicianID != nil && !reassign {
		return models.Request{}, ErrAlreadyAssigned
	}
	if r.Status != models.RequestPending && !(reassign && r.Status == models.RequestAssigned) {
		return models.Request{}, &InvalidTransitionError{From: string(r.Status), To: string(models.RequestAssigned)}
	}

	duration := s.DefaultJobDuration
	if duration <= 0 {
		duration = 2 * time.Hour
	}
	start := time.Now().UTC()
	task := models.Task{
		JobID:       requestID,
		StartDate:   start,
		WorkMinutes: int(duration / time.Minute),
		SubStatus:   "dispatched",
	}
	if err := s.reserve(ctx, technicianID, task, r.TechnicianID, func(tx pgx.Tx) (bool, error) {
		return s.Store.AssignRequest(ctx, tx, requestID, technicianID, reassign)
	}); err != nil {
		return models.Request{}, err
	}

	s.Logger.Info().
		Str("request_id", requestID).
		Str("technician_id", technicianID).
		Msg("request assigned")
	s.Events.Publish(ctx, "assignment.request", events.Event{
		Kind:         "request.assigned",
		RequestID:    requestID,
		TechnicianID: technicianID,
		Status:       string(models.RequestAssigned),
	})
	return s.Store.GetRequest(ctx, requestID)
}

// reserve appends the task under the technician's optimistic version
// and runs the job-side update in the same transaction. On a reassign,
// the displaced technician's entry for the job is removed in that same
// transaction so their window frees up. One retry on a version
// conflict, then the window is treated as taken.
func (s *AssignmentService) reserve(ctx context.Context, technicianID string, task models.Task, displaced *string, commitJob func(tx pgx.Tx) (bool, error)) error {
	for attempt := 0; attempt < 2; attempt++ {
		tech, err := s.Store.GetTechnician(ctx, technicianID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &NotFoundError{Kind: "technician", ID: technicianID}
			}
			return err
		}
		tasks := tech.Tasks
		if displaced != nil && *displaced == technicianID {
			// Re-slotting on the same technician; the old window for
			// this job must not count against the new one.
			tasks, _ = removeTask(tasks, task.JobID)
		}
		if Overlaps(tasks, task.StartDate, task.EndDate()) {
			return ErrTechnicianUnavailable
		}

		err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
			if displaced != nil && *displaced != technicianID {
				if err := s.releaseTask(ctx, tx, *displaced, task.JobID); err != nil {
					return err
				}
			}
			if err := s.Store.UpdateTechnicianTasks(ctx, tx, technicianID, append(tasks, task), tech.Version); err != nil {
				return err
			}
			ok, err := commitJob(tx)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAlreadyAssigned
			}
			return nil
		})
		if errors.Is(err, db.ErrVersionConflict) {
			s.Logger.Debug().
				Str("technician_id", technicianID).
				Int("attempt", attempt+1).
				Msg("technician version conflict, retrying")
			continue
		}
		return err
	}
	return ErrTechnicianUnavailable
}

// releaseTask drops the displaced technician's entry for the job under
// their own version guard.
func (s *AssignmentService) releaseTask(ctx context.Context, tx pgx.Tx, technicianID, jobID string) error {
	prev, err := s.Store.GetTechnician(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	rest, removed := removeTask(prev.Tasks, jobID)
	if !removed {
		return nil
	}
	return s.Store.UpdateTechnicianTasks(ctx, tx, technicianID, rest, prev.Version)
}

// removeTask filters out the entry for jobID and reports whether one
// existed.
func removeTask(tasks []models.Task, jobID string) ([]models.Task, bool) {
	out := make([]models.Task, 0, len(tasks))
	removed := false
	for _, t := range tasks {
		if t.JobID == jobID {
			removed = true
			continue
		}
		out = append(out, t)
	}
	return out, removed
}
