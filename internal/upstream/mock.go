package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/wrenchway/backend/internal/utils"
)

// MockClient serves a small deterministic fleet of appointments so the
// service runs end to end without the real scheduling system.
type MockClient struct {
	Count int
}

func (m MockClient) ListNewAppointments(ctx context.Context) ([]Appointment, error) {
	all, err := m.ListAllAppointments(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > 2 {
		all = all[:2]
	}
	return all, nil
}

func (m MockClient) ListAllAppointments(_ context.Context) ([]Appointment, error) {
	count := m.Count
	if count <= 0 {
		count = 5
	}

	brands := []string{"Toyota", "Ford", "BMW", "Hyundai"}
	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	out := make([]Appointment, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("apt-%03d", i+1)
		h := utils.HashStringToUint64(id)
		scheduled := base.Add(time.Duration(h%72) * time.Hour)
		end := scheduled.Add(time.Duration(1+h%4) * time.Hour)
		out = append(out, Appointment{
			AppointmentID: id,
			CustomerID:    fmt.Sprintf("cust-%03d", h%50),
			VehicleID:     fmt.Sprintf("veh-%03d", h%40),
			Brand:         brands[h%uint64(len(brands))],
			Model:         fmt.Sprintf("Model-%d", h%9),
			Mileage:       int(h % 200000),
			Notes:         "regular service",
			ScheduledAt:   scheduled,
			PredictedEnd:  &end,
		})
	}
	return out, nil
}
