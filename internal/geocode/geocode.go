package geocode

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("geocode not found")

// Geocoder resolves a free-form address reported on request intake to a
// starting position for the tracking view.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lng float64, displayName string, confidence float64, err error)
}
