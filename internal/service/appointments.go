package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/events"
	"github.com/wrenchway/backend/internal/models"
)

// appointmentTransitions mirrors the request graph for work orders. The
// pending -> scheduled edge belongs to the assignment engine.
var appointmentTransitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.AppointmentPending:   {models.AppointmentScheduled},
	models.AppointmentScheduled: {models.AppointmentInProcess},
	models.AppointmentInProcess: {models.AppointmentFinished},
}

func ValidateAppointmentTransition(from, to models.AppointmentStatus) error {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: string(from), To: string(to)}
}

type AppointmentService struct {
	Store    *db.Store
	Registry *RegistryService
	Events   *events.Publisher
	Logger   zerolog.Logger
}

// Transition advances a work order. Only the locally owned part of the
// record moves; upstream never sees or overrides it.
func (s *AppointmentService) Transition(ctx context.Context, id string, to models.AppointmentStatus) (models.Appointment, error) {
	a, err := s.Store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, &NotFoundError{Kind: "appointment", ID: id}
		}
		return models.Appointment{}, err
	}
	if to == models.AppointmentScheduled {
		return models.Appointment{}, &InvalidTransitionError{From: string(a.Status), To: string(to)}
	}
	if err := ValidateAppointmentTransition(a.Status, to); err != nil {
		return models.Appointment{}, err
	}

	ok, err := s.Store.UpdateAppointmentStatus(ctx, id, a.Status, to)
	if err != nil {
		return models.Appointment{}, err
	}
	if !ok {
		fresh, err := s.Store.GetAppointment(ctx, id)
		if err != nil {
			return models.Appointment{}, err
		}
		return models.Appointment{}, &InvalidTransitionError{From: string(fresh.Status), To: string(to)}
	}

	a.Status = to
	s.Logger.Info().Str("appointment_id", id).Str("status", string(to)).Msg("appointment transitioned")
	if to == models.AppointmentFinished && a.TechnicianID != nil && s.Registry != nil {
		if err := s.Registry.UpdateTaskStatus(ctx, *a.TechnicianID, id, "done"); err != nil {
			s.Logger.Warn().Err(err).Str("appointment_id", id).Msg("failed to update task sub-status")
		}
	}
	s.Events.Publish(ctx, "appointment.status", events.Event{
		Kind:   "appointment.status_changed",
		JobID:  id,
		Status: string(to),
	})
	return a, nil
}
