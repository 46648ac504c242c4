package service

import (
	"testing"
	"time"

	"github.com/wrenchway/backend/internal/models"
)

func TestAppointmentWindowUsesPredictedEnd(t *testing.T) {
	scheduled := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	end := scheduled.Add(3 * time.Hour)
	a := models.Appointment{ScheduledAt: scheduled, PredictedEnd: &end}

	start, got := AppointmentWindow(a, time.Now().UTC())
	if !start.Equal(scheduled) {
		t.Fatalf("expected window start %v, got %v", scheduled, start)
	}
	if !got.Equal(end) {
		t.Fatalf("expected window end %v, got %v", end, got)
	}
}

func TestAppointmentWindowDefaultsToOneDay(t *testing.T) {
	scheduled := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	a := models.Appointment{ScheduledAt: scheduled}

	start, end := AppointmentWindow(a, time.Now().UTC())
	if !start.Equal(scheduled) {
		t.Fatalf("expected window start %v, got %v", scheduled, start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("expected one-day window, got %v", end.Sub(start))
	}
}

func TestAppointmentWindowIgnoresPredictedEndBeforeStart(t *testing.T) {
	scheduled := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	bogus := scheduled.Add(-time.Hour)
	a := models.Appointment{ScheduledAt: scheduled, PredictedEnd: &bogus}

	start, end := AppointmentWindow(a, time.Now().UTC())
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("expected fallback one-day window, got %v", end.Sub(start))
	}
}

func TestAppointmentWindowDraftWithoutSchedule(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	start, end := AppointmentWindow(models.Appointment{}, now)
	if !start.Equal(now) {
		t.Fatalf("expected draft window to start now, got %v", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("expected one-day window, got %v", end.Sub(start))
	}
}

func TestRemoveTaskDropsOnlyMatchingJob(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{JobID: "job-a", StartDate: base, WorkMinutes: 60},
		{JobID: "job-b", StartDate: base.Add(2 * time.Hour), WorkMinutes: 60},
	}

	rest, removed := removeTask(tasks, "job-a")
	if !removed {
		t.Fatal("expected job-a to be removed")
	}
	if len(rest) != 1 || rest[0].JobID != "job-b" {
		t.Fatalf("unexpected remaining tasks: %+v", rest)
	}
}

func TestRemoveTaskMissingJob(t *testing.T) {
	tasks := []models.Task{{JobID: "job-a", StartDate: time.Now().UTC(), WorkMinutes: 30}}
	rest, removed := removeTask(tasks, "job-x")
	if removed {
		t.Fatal("nothing should be removed for an unknown job")
	}
	if len(rest) != 1 {
		t.Fatalf("task list must be untouched, got %+v", rest)
	}
}

func TestRemoveTaskFreesWindow(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	tasks := []models.Task{{JobID: "job-a", StartDate: base, WorkMinutes: 120}}

	if !Overlaps(tasks, base, base.Add(time.Hour)) {
		t.Fatal("window should be blocked before removal")
	}
	rest, _ := removeTask(tasks, "job-a")
	if Overlaps(rest, base, base.Add(time.Hour)) {
		t.Fatal("window must be free after the job's task is removed")
	}
}
