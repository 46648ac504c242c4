package upstream

import (
	"context"
	"time"
)

// Appointment is the wire payload of the upstream scheduling system.
// It is untrusted input; the synchronizer validates it field by field
// before anything touches storage.
type Appointment struct {
	AppointmentID string     `json:"appointment_id" validate:"required"`
	CustomerID    string     `json:"customer_id" validate:"required"`
	VehicleID     string     `json:"vehicle_id" validate:"required"`
	Brand         string     `json:"brand"`
	Model         string     `json:"model"`
	Mileage       int        `json:"mileage" validate:"gte=0"`
	Notes         string     `json:"notes"`
	ScheduledAt   time.Time  `json:"scheduled_date" validate:"required"`
	PredictedEnd  *time.Time `json:"predicted_duration_date"`
}

type Client interface {
	ListNewAppointments(ctx context.Context) ([]Appointment, error)
	ListAllAppointments(ctx context.Context) ([]Appointment, error)
}
