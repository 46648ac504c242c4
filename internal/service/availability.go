package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/models"
)

// Overlaps reports whether [start, end) intersects any of the task
// intervals. Task lists are short, a linear scan is enough.
func Overlaps(tasks []models.Task, start, end time.Time) bool {
	for _, t := range tasks {
		if t.StartDate.Before(end) && start.Before(t.EndDate()) {
			return true
		}
	}
	return false
}

type RegistryService struct {
	Store  *db.Store
	Logger zerolog.Logger
}

func (s *RegistryService) Register(ctx context.Context, name, phone string) (models.Technician, error) {
	now := time.Now().UTC()
	t := models.Technician{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		Tasks:     []models.Task{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreateTechnician(ctx, t); err != nil {
		return models.Technician{}, err
	}
	s.Logger.Info().Str("technician_id", t.ID).Msg("technician registered")
	return t, nil
}

func (s *RegistryService) Get(ctx context.Context, id string) (models.Technician, error) {
	t, err := s.Store.GetTechnician(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Technician{}, &NotFoundError{Kind: "technician", ID: id}
		}
		return models.Technician{}, err
	}
	return t, nil
}

func (s *RegistryService) List(ctx context.Context) ([]models.Technician, error) {
	return s.Store.ListTechnicians(ctx)
}

// UpdateTaskStatus rewrites the sub-status of an existing task entry.
// The task list itself stays append-only. One retry on a version race,
// same as the assignment path.
func (s *RegistryService) UpdateTaskStatus(ctx context.Context, technicianID, jobID, subStatus string) error {
	for attempt := 0; attempt < 2; attempt++ {
		tech, err := s.Get(ctx, technicianID)
		if err != nil {
			return err
		}
		found := false
		tasks := make([]models.Task, len(tech.Tasks))
		copy(tasks, tech.Tasks)
		for i := range tasks {
			if tasks[i].JobID == jobID {
				tasks[i].SubStatus = subStatus
				found = true
			}
		}
		if !found {
			return &NotFoundError{Kind: "task", ID: jobID}
		}

		err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
			return s.Store.UpdateTechnicianTasks(ctx, tx, technicianID, tasks, tech.Version)
		})
		if errors.Is(err, db.ErrVersionConflict) {
			continue
		}
		return err
	}
	return db.ErrVersionConflict
}

// ListAvailable returns technicians with no task intersecting the
// window. Pure query over one snapshot; never mutates.
func (s *RegistryService) ListAvailable(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Technician, error) {
	all, err := s.Store.ListTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Technician, 0, len(all))
	for _, t := range all {
		if !Overlaps(t.Tasks, windowStart, windowEnd) {
			out = append(out, t)
		}
	}
	return out, nil
}
