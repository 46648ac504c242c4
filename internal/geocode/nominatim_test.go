package geocode

import (
	"errors"
	"testing"
)

func TestParseNominatimItems(t *testing.T) {
	items := []nominatimItem{
		{
			Lat:         "37.7749",
			Lon:         "-122.4194",
			DisplayName: "San Francisco, California",
			Importance:  0.81,
		},
	}
	res, err := parseNominatimItems(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lat != 37.7749 || res.Lng != -122.4194 {
		t.Fatalf("unexpected coordinates: %+v", res)
	}
	if res.DisplayName != "San Francisco, California" {
		t.Fatalf("unexpected display name: %s", res.DisplayName)
	}
	if res.Confidence != 0.81 {
		t.Fatalf("unexpected confidence: %f", res.Confidence)
	}
}

func TestParseNominatimItemsEmpty(t *testing.T) {
	_, err := parseNominatimItems(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseNominatimItemsBadCoordinates(t *testing.T) {
	items := []nominatimItem{{Lat: "not-a-number", Lon: "0"}}
	if _, err := parseNominatimItems(items); err == nil {
		t.Fatal("expected parse error")
	}
}
