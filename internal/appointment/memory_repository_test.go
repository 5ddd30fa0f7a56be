package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func newStoredAppointment(t *testing.T, repo *MemoryRepository, doctorID uuid.UUID, start time.Time) *scheduling.Appointment {
	t.Helper()
	slot, err := scheduling.NewTimeSlot(start, testNow)
	require.NoError(t, err)
	appt := scheduling.NewAppointment(uuid.New(), doctorID, slot, "", testNow)
	require.NoError(t, repo.Save(context.Background(), appt))
	return appt
}

func TestMemoryRepository_TimeRange(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doctorID := uuid.New()
	day := time.Date(2030, time.March, 11, 0, 0, 0, 0, time.UTC)

	ten := newStoredAppointment(t, repo, doctorID, day.Add(10*time.Hour))
	cancelled := newStoredAppointment(t, repo, doctorID, day.Add(12*time.Hour))
	require.NoError(t, cancelled.Cancel(scheduling.Doctor, testNow))
	require.NoError(t, repo.Save(ctx, cancelled))
	newStoredAppointment(t, repo, uuid.New(), day.Add(10*time.Hour))

	got, err := repo.FindByDoctorAndTimeRange(ctx, doctorID, day.Add(9*time.Hour), day.Add(13*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ten.ID(), got[0].ID())

	// buffer end (11:00) is exclusive against a range starting at 11:00
	got, err = repo.FindByDoctorAndTimeRange(ctx, doctorID, day.Add(11*time.Hour), day.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryRepository_SaveIsolatesState(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	appt := newStoredAppointment(t, repo, uuid.New(), testNow.Add(48*time.Hour))

	require.NoError(t, appt.Confirm(scheduling.Doctor, testNow))

	stored, err := repo.FindByID(ctx, appt.ID())
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusReserved, stored.Status(), "unsaved changes are not visible")

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepository_Outbox(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for _, et := range []string{EventAppointmentCreated, EventAppointmentConfirmed, EventAppointmentCancelled} {
		require.NoError(t, repo.InsertEvent(ctx, EventLog{EventType: et, CreatedAt: testNow}))
	}

	batch, err := repo.FetchUnpublished(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)

	require.NoError(t, repo.MarkPublished(ctx, batch[0].ID, testNow))

	rest, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, EventAppointmentConfirmed, rest[0].EventType)
}
