package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/models"
	"github.com/wrenchway/backend/internal/utils"
)

// Fresher is the monotonic-timestamp rule: an incoming position wins
// only if it is not older than the stored one. Equal timestamps win so
// a retransmitted fix can correct coordinates.
func Fresher(stored *models.Location, incoming models.Location) bool {
	if stored == nil {
		return true
	}
	return !incoming.ObservedAt.Before(stored.ObservedAt)
}

type TrackingService struct {
	Store  *db.Store
	Logger zerolog.Logger
}

// Push records a live position for one role of a request. Stale pushes
// and pushes against archived requests come back accepted=false, not
// as errors.
func (s *TrackingService) Push(ctx context.Context, requestID string, role models.Role, loc models.Location) (bool, error) {
	req := RequestService{Store: s.Store, Logger: s.Logger}
	r, err := req.Get(ctx, requestID)
	if err != nil {
		return false, err
	}
	if r.Status.Terminal() {
		return false, nil
	}

	accepted, err := s.Store.SaveLocation(ctx, requestID, role, loc)
	if err != nil {
		return false, err
	}
	if !accepted {
		s.Logger.Debug().
			Str("request_id", requestID).
			Str("role", string(role)).
			Time("observed_at", loc.ObservedAt).
			Msg("stale location dropped")
	}
	return accepted, nil
}

// View assembles the consolidated tracking state. The technician flag
// flips only once an actual technician position exists; an assignment
// alone is not enough to leave the waiting state.
func (s *TrackingService) View(ctx context.Context, requestID string) (models.TrackingView, error) {
	req := RequestService{Store: s.Store, Logger: s.Logger}
	r, err := req.Get(ctx, requestID)
	if err != nil {
		return models.TrackingView{}, err
	}

	locs, err := s.Store.GetLocations(ctx, requestID)
	if err != nil {
		return models.TrackingView{}, err
	}

	view := models.TrackingView{RequestID: requestID, Status: r.Status}
	if cust, ok := locs[models.RoleCustomer]; ok {
		c := cust
		view.CustomerLocation = &c
	}
	if tech, ok := locs[models.RoleTechnician]; ok {
		t := tech
		view.TechnicianLocation = &t
		view.HasTechnicianLocation = true
	}
	if view.CustomerLocation != nil && view.TechnicianLocation != nil {
		d := utils.HaversineKm(
			view.CustomerLocation.Lat, view.CustomerLocation.Lng,
			view.TechnicianLocation.Lat, view.TechnicianLocation.Lng,
		)
		view.DistanceKm = &d
	}
	return view, nil
}
