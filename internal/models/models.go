package models

import "time"

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAssigned   RequestStatus = "assigned"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether a request is archived: no further transitions
// or location updates are applied.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentInProcess AppointmentStatus = "inprocess"
	AppointmentFinished  AppointmentStatus = "finished"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
)

type Location struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ObservedAt time.Time `json:"observed_at"`
}

type Request struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	TechnicianID *string       `json:"technician_id"`
	Status       RequestStatus `json:"status"`
	Address      string        `json:"address"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Appointment is a work order whose natural key is assigned by the
// upstream scheduling system. Descriptive fields are upstream-owned;
// technician, start/end and locally advanced status are ours.
type Appointment struct {
	AppointmentID string            `json:"appointment_id"`
	CustomerID    string            `json:"customer_id"`
	VehicleID     string            `json:"vehicle_id"`
	Brand         string            `json:"brand"`
	Model         string            `json:"model"`
	Mileage       int               `json:"mileage"`
	Notes         string            `json:"notes"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	PredictedEnd  *time.Time        `json:"predicted_end"`
	Status        AppointmentStatus `json:"status"`
	TechnicianID  *string           `json:"technician_id"`
	StartDate     *time.Time        `json:"start_date"`
	EndDate       *time.Time        `json:"end_date"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Task is one scheduled slot in a technician's day. JobID references
// either an appointment's natural key or a roadside request id.
type Task struct {
	JobID       string    `json:"job_id"`
	StartDate   time.Time `json:"start_date"`
	WorkMinutes int       `json:"work_minutes"`
	SubStatus   string    `json:"sub_status"`
}

func (t Task) EndDate() time.Time {
	return t.StartDate.Add(time.Duration(t.WorkMinutes) * time.Minute)
}

type Technician struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Tasks     []Task    `json:"tasks"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TrackingView struct {
	RequestID             string        `json:"request_id"`
	Status                RequestStatus `json:"status"`
	CustomerLocation      *Location     `json:"customer_location"`
	TechnicianLocation    *Location     `json:"technician_location"`
	HasTechnicianLocation bool          `json:"has_technician_location"`
	DistanceKm            *float64      `json:"distance_km,omitempty"`
}

type SyncSummary struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type SyncRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Status     string     `json:"status"`
	Summary    []byte     `json:"summary"`
}
