package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/events"
	"github.com/wrenchway/backend/internal/geocode"
	"github.com/wrenchway/backend/internal/models"
)

// transitions is the request status graph. The pending -> assigned edge
// is taken only by the assignment engine, which must set the technician
// in the same write; Transition refuses it.
var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestPending:    {models.RequestAssigned, models.RequestCancelled},
	models.RequestAssigned:   {models.RequestInProgress, models.RequestCancelled},
	models.RequestInProgress: {models.RequestCompleted, models.RequestCancelled},
}

func ValidateTransition(from, to models.RequestStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: string(from), To: string(to)}
}

type RequestService struct {
	Store    *db.Store
	Registry *RegistryService
	Events   *events.Publisher
	Geocoder geocode.Geocoder
	Logger   zerolog.Logger
}

// Create opens a roadside request in pending state. When the caller
// reports an address but no coordinates, the geocoded position seeds the
// customer location so trackers have a point before the first push.
func (s *RequestService) Create(ctx context.Context, customerID, address string, lat, lng *float64) (models.Request, error) {
	now := time.Now().UTC()
	r := models.Request{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     models.RequestPending,
		Address:    address,
		CreatedAt:  now,
	}
	r.UpdatedAt = now
	if err := s.Store.CreateRequest(ctx, r); err != nil {
		return models.Request{}, err
	}

	seed := seedLocation(lat, lng, now)
	if seed == nil && address != "" && s.Geocoder != nil {
		if gLat, gLng, _, _, err := s.Geocoder.Geocode(ctx, address); err == nil {
			seed = &models.Location{Lat: gLat, Lng: gLng, ObservedAt: now}
		} else {
			s.Logger.Warn().Err(err).Str("request_id", r.ID).Msg("geocode failed on intake")
		}
	}
	if seed != nil {
		if _, err := s.Store.SaveLocation(ctx, r.ID, models.RoleCustomer, *seed); err != nil {
			s.Logger.Error().Err(err).Str("request_id", r.ID).Msg("failed to seed customer location")
		}
	}

	s.Events.Publish(ctx, "request.created", events.Event{
		Kind:      "request.created",
		RequestID: r.ID,
		Status:    string(r.Status),
	})
	return r, nil
}

func (s *RequestService) Get(ctx context.Context, id string) (models.Request, error) {
	r, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Request{}, &NotFoundError{Kind: "request", ID: id}
		}
		return models.Request{}, err
	}
	return r, nil
}

// Transition applies an explicit start/complete/cancel signal. The
// assigned target is reserved for the assignment engine.
func (s *RequestService) Transition(ctx context.Context, id string, to models.RequestStatus) (models.Request, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return models.Request{}, err
	}
	if to == models.RequestAssigned {
		return models.Request{}, &InvalidTransitionError{From: string(r.Status), To: string(to)}
	}
	if err := ValidateTransition(r.Status, to); err != nil {
		return models.Request{}, err
	}

	ok, err := s.Store.UpdateRequestStatus(ctx, id, r.Status, to)
	if err != nil {
		return models.Request{}, err
	}
	if !ok {
		// Lost a race; report against the fresh status.
		fresh, err := s.Get(ctx, id)
		if err != nil {
			return models.Request{}, err
		}
		return models.Request{}, &InvalidTransitionError{From: string(fresh.Status), To: string(to)}
	}

	r.Status = to
	s.Logger.Info().Str("request_id", id).Str("status", string(to)).Msg("request transitioned")

	// Reflect terminal outcomes on the technician's task entry. Best
	// effort: the transition itself already committed.
	if to.Terminal() && r.TechnicianID != nil && s.Registry != nil {
		sub := "done"
		if to == models.RequestCancelled {
			sub = "cancelled"
		}
		if err := s.Registry.UpdateTaskStatus(ctx, *r.TechnicianID, id, sub); err != nil {
			s.Logger.Warn().Err(err).Str("request_id", id).Msg("failed to update task sub-status")
		}
	}
	s.Events.Publish(ctx, "request.status", events.Event{
		Kind:      "request.status_changed",
		RequestID: id,
		Status:    string(to),
	})
	return r, nil
}

func seedLocation(lat, lng *float64, at time.Time) *models.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.Location{Lat: *lat, Lng: *lng, ObservedAt: at}
}
