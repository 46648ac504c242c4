package service

import (
	"testing"
	"time"

	"github.com/wrenchway/backend/internal/models"
)

func TestFresherAcceptsFirstFix(t *testing.T) {
	loc := models.Location{Lat: 37.77, Lng: -122.41, ObservedAt: time.Now().UTC()}
	if !Fresher(nil, loc) {
		t.Fatal("first fix must always be accepted")
	}
}

func TestFresherDropsOlderFix(t *testing.T) {
	stored := &models.Location{Lat: 37.77, Lng: -122.41, ObservedAt: time.Unix(100, 0)}
	stale := models.Location{Lat: 37.78, Lng: -122.42, ObservedAt: time.Unix(90, 0)}
	if Fresher(stored, stale) {
		t.Fatal("out-of-order fix must be dropped")
	}
}

func TestFresherAcceptsEqualTimestamp(t *testing.T) {
	at := time.Unix(100, 0)
	stored := &models.Location{Lat: 37.77, Lng: -122.41, ObservedAt: at}
	retransmit := models.Location{Lat: 37.771, Lng: -122.411, ObservedAt: at}
	if !Fresher(stored, retransmit) {
		t.Fatal("equal-timestamp retransmission must be accepted")
	}
}

func TestFresherAcceptsNewerFix(t *testing.T) {
	stored := &models.Location{ObservedAt: time.Unix(100, 0)}
	newer := models.Location{ObservedAt: time.Unix(101, 0)}
	if !Fresher(stored, newer) {
		t.Fatal("newer fix must be accepted")
	}
}
