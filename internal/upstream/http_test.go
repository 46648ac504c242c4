package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientListAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"appointment_id":"apt-1","customer_id":"c1","vehicle_id":"v1","brand":"Ford","mileage":1200,"scheduled_date":"2026-05-02T09:00:00Z"},
			{"appointment_id":"apt-2","customer_id":"c2","vehicle_id":"v2","brand":"BMW","mileage":300,"scheduled_date":"2026-05-03T10:00:00Z","predicted_duration_date":"2026-05-03T12:00:00Z"}
		]`))
	}))
	defer srv.Close()

	client := HTTPClient{BaseURL: srv.URL, APIKey: "secret"}
	out, err := client.ListAllAppointments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(out))
	}
	if out[0].AppointmentID != "apt-1" || out[0].Brand != "Ford" {
		t.Fatalf("unexpected first record: %+v", out[0])
	}
	if out[1].PredictedEnd == nil {
		t.Fatal("expected predicted end on second record")
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := HTTPClient{BaseURL: srv.URL}
	if _, err := client.ListNewAppointments(context.Background()); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}

func TestMockClientDeterministic(t *testing.T) {
	m := MockClient{Count: 4}
	a, err := m.ListAllAppointments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := m.ListAllAppointments(context.Background())
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("expected 4 records, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].AppointmentID != b[i].AppointmentID || a[i].CustomerID != b[i].CustomerID {
			t.Fatalf("mock output must be deterministic: %+v vs %+v", a[i], b[i])
		}
	}

	fresh, _ := m.ListNewAppointments(context.Background())
	if len(fresh) != 2 {
		t.Fatalf("expected new-subset of 2, got %d", len(fresh))
	}
}
