package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HTTPClient struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

func (h HTTPClient) ListNewAppointments(ctx context.Context) ([]Appointment, error) {
	return h.list(ctx, "/appointments/new")
}

func (h HTTPClient) ListAllAppointments(ctx context.Context) ([]Appointment, error) {
	return h.list(ctx, "/appointments")
}

func (h HTTPClient) list(ctx context.Context, path string) ([]Appointment, error) {
	client := h.Client
	if client == nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream http error: %s", resp.Status)
	}

	var out []Appointment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
