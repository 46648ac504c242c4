package service

import (
	"errors"
	"testing"

	"github.com/wrenchway/backend/internal/models"
)

func TestValidateTransitionAllowedEdges(t *testing.T) {
	allowed := []struct {
		from models.RequestStatus
		to   models.RequestStatus
	}{
		{models.RequestPending, models.RequestAssigned},
		{models.RequestPending, models.RequestCancelled},
		{models.RequestAssigned, models.RequestInProgress},
		{models.RequestAssigned, models.RequestCancelled},
		{models.RequestInProgress, models.RequestCompleted},
		{models.RequestInProgress, models.RequestCancelled},
	}
	for _, tc := range allowed {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Fatalf("expected %s -> %s to be allowed, got %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateTransitionRejectsSkippedState(t *testing.T) {
	err := ValidateTransition(models.RequestPending, models.RequestInProgress)
	var it *InvalidTransitionError
	if !errors.As(err, &it) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if it.From != string(models.RequestPending) || it.To != string(models.RequestInProgress) {
		t.Fatalf("error should name both statuses, got %+v", it)
	}
}

func TestValidateTransitionTerminalStatesAreFinal(t *testing.T) {
	terminals := []models.RequestStatus{models.RequestCompleted, models.RequestCancelled}
	targets := []models.RequestStatus{
		models.RequestPending, models.RequestAssigned,
		models.RequestInProgress, models.RequestCompleted, models.RequestCancelled,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if err := ValidateTransition(from, to); err == nil {
				t.Fatalf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestValidateTransitionNoRegression(t *testing.T) {
	if err := ValidateTransition(models.RequestInProgress, models.RequestAssigned); err == nil {
		t.Fatal("expected backwards transition to be rejected")
	}
	if err := ValidateTransition(models.RequestAssigned, models.RequestPending); err == nil {
		t.Fatal("expected backwards transition to be rejected")
	}
}
