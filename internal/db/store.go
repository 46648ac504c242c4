package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wrenchway/backend/internal/models"
)

// ErrVersionConflict signals that a technician row changed between read
// and write. Callers retry with a fresh read.
var ErrVersionConflict = errors.New("technician version conflict")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateRequest(ctx context.Context, r models.Request) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO requests (id, customer_id, technician_id, status, address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
	`, r.ID, r.CustomerID, r.TechnicianID, r.Status, r.Address, r.CreatedAt)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (models.Request, error) {
	var r models.Request
	err := s.Pool.QueryRow(ctx, `
		SELECT id, customer_id, technician_id, status, address, created_at, updated_at
		FROM requests WHERE id = $1
	`, id).Scan(&r.ID, &r.CustomerID, &r.TechnicianID, &r.Status, &r.Address, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) ListRequests(ctx context.Context, status string, limit, offset int) ([]models.Request, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, customer_id, technician_id, status, address, created_at, updated_at FROM requests`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		var r models.Request
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.TechnicianID, &r.Status, &r.Address, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRequestStatus moves a request along the status graph. The WHERE
// clause pins the expected current status, so a concurrent transition
// makes this a no-op and the caller re-reads to find out why.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE requests SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AssignRequest(ctx context.Context, tx pgx.Tx, id, technicianID string, reassign bool) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET technician_id = $2, status = 'assigned', updated_at = NOW()
		WHERE id = $1 AND (status = 'pending' OR (status = 'assigned' AND $3))
	`, id, technicianID, reassign)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SaveLocation is the single write path for live positions. The
// conditional upsert keeps the stored record monotonic in observed_at,
// and the insert is gated on the request still being active so a push
// racing a completion cannot land after archival. Zero affected rows
// means the push was stale or the request terminal; either way it is
// dropped.
func (s *Store) SaveLocation(ctx context.Context, requestID string, role models.Role, loc models.Location) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO request_locations (request_id, role, lat, lng, observed_at)
		SELECT $1,$2,$3,$4,$5
		WHERE EXISTS (
			SELECT 1 FROM requests
			WHERE id = $1 AND status NOT IN ('completed','cancelled')
		)
		ON CONFLICT (request_id, role) DO UPDATE SET
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			observed_at = EXCLUDED.observed_at
		WHERE request_locations.observed_at <= EXCLUDED.observed_at
	`, requestID, role, loc.Lat, loc.Lng, loc.ObservedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetLocations(ctx context.Context, requestID string) (map[models.Role]models.Location, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT role, lat, lng, observed_at FROM request_locations WHERE request_id = $1
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[models.Role]models.Location{}
	for rows.Next() {
		var role models.Role
		var loc models.Location
		if err := rows.Scan(&role, &loc.Lat, &loc.Lng, &loc.ObservedAt); err != nil {
			return nil, err
		}
		out[role] = loc
	}
	return out, rows.Err()
}

func (s *Store) CreateTechnician(ctx context.Context, t models.Technician) error {
	tasks, err := json.Marshal(t.Tasks)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO technicians (id, name, phone, tasks, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,1,$5,$5)
	`, t.ID, t.Name, t.Phone, tasks, t.CreatedAt)
	return err
}

func (s *Store) GetTechnician(ctx context.Context, id string) (models.Technician, error) {
	var t models.Technician
	var tasks []byte
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, phone, tasks, version, created_at, updated_at
		FROM technicians WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Phone, &tasks, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Technician{}, err
	}
	if err := json.Unmarshal(tasks, &t.Tasks); err != nil {
		return models.Technician{}, err
	}
	return t, nil
}

func (s *Store) ListTechnicians(ctx context.Context) ([]models.Technician, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, phone, tasks, version, created_at, updated_at
		FROM technicians ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Technician
	for rows.Next() {
		var t models.Technician
		var tasks []byte
		if err := rows.Scan(&t.ID, &t.Name, &t.Phone, &tasks, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tasks, &t.Tasks); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTechnicianTasks replaces the task list under an optimistic
// version check. ErrVersionConflict means somebody else won the write.
func (s *Store) UpdateTechnicianTasks(ctx context.Context, tx pgx.Tx, id string, tasks []models.Task, version int64) error {
	b, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE technicians SET tasks = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
	`, id, b, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrVersionConflict
	}
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, appointmentID string) (models.Appointment, error) {
	var a models.Appointment
	err := s.Pool.QueryRow(ctx, `
		SELECT appointment_id, customer_id, vehicle_id, brand, model, mileage, notes,
			scheduled_at, predicted_end, status, technician_id, start_date, end_date,
			created_at, updated_at
		FROM appointments WHERE appointment_id = $1
	`, appointmentID).Scan(
		&a.AppointmentID, &a.CustomerID, &a.VehicleID, &a.Brand, &a.Model, &a.Mileage, &a.Notes,
		&a.ScheduledAt, &a.PredictedEnd, &a.Status, &a.TechnicianID, &a.StartDate, &a.EndDate,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (s *Store) ListAppointments(ctx context.Context, status string, limit, offset int) ([]models.Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT appointment_id, customer_id, vehicle_id, brand, model, mileage, notes,
			scheduled_at, predicted_end, status, technician_id, start_date, end_date,
			created_at, updated_at
		FROM appointments`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_at ASC LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(
			&a.AppointmentID, &a.CustomerID, &a.VehicleID, &a.Brand, &a.Model, &a.Mileage, &a.Notes,
			&a.ScheduledAt, &a.PredictedEnd, &a.Status, &a.TechnicianID, &a.StartDate, &a.EndDate,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAppointment inserts a synced record. ON CONFLICT DO NOTHING
// keeps the natural-key uniqueness invariant under racing syncs; the
// false return lets the synchronizer fall back to the update path.
func (s *Store) InsertAppointment(ctx context.Context, a models.Appointment) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO appointments (appointment_id, customer_id, vehicle_id, brand, model, mileage, notes,
			scheduled_at, predicted_end, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (appointment_id) DO NOTHING
	`, a.AppointmentID, a.CustomerID, a.VehicleID, a.Brand, a.Model, a.Mileage, a.Notes,
		a.ScheduledAt, a.PredictedEnd, a.Status, a.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAppointmentUpstream rewrites only the fields the upstream source
// owns. Local assignment state is deliberately absent from the SET list.
func (s *Store) UpdateAppointmentUpstream(ctx context.Context, a models.Appointment) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE appointments
		SET customer_id = $2, vehicle_id = $3, brand = $4, model = $5, mileage = $6,
			notes = $7, scheduled_at = $8, predicted_end = $9, updated_at = NOW()
		WHERE appointment_id = $1
	`, a.AppointmentID, a.CustomerID, a.VehicleID, a.Brand, a.Model, a.Mileage,
		a.Notes, a.ScheduledAt, a.PredictedEnd)
	return err
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, from, to models.AppointmentStatus) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE appointments SET status = $3, updated_at = NOW()
		WHERE appointment_id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AssignAppointment(ctx context.Context, tx pgx.Tx, appointmentID, technicianID string, start, end time.Time, reassign bool) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET technician_id = $2, start_date = $3, end_date = $4,
			status = CASE WHEN status = 'pending' THEN 'scheduled' ELSE status END,
			updated_at = NOW()
		WHERE appointment_id = $1 AND (technician_id IS NULL OR $5)
	`, appointmentID, technicianID, start, end, reassign)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CreateSyncRun(ctx context.Context) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO sync_runs (status, started_at) VALUES ('RUNNING', NOW()) RETURNING id
	`).Scan(&id)
	return id, err
}

func (s *Store) FinishSyncRun(ctx context.Context, runID, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE sync_runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3
	`, status, summary, runID)
	return err
}

func (s *Store) GetLatestSyncRun(ctx context.Context) (models.SyncRun, error) {
	var run models.SyncRun
	err := s.Pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, status, summary
		FROM sync_runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Summary)
	return run, err
}
