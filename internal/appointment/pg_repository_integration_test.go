//go:build integration

package appointment

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "scheduling_test",
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "testpass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		host, err := container.Host(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres host: %v\n", err)
			return 1
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres port: %v\n", err)
			return 1
		}

		dsn := fmt.Sprintf("postgres://test:testpass@%s:%s/scheduling_test?sslmode=disable", host, port.Port())
		logger, _ := logtest.NewNullLogger()

		testPool, err = db.ConnectPostgres(ctx, dsn, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
			return 1
		}
		defer testPool.Close()

		if err := db.Migrate(ctx, testPool); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		// twice, to prove the schema is re-runnable
		if err := db.Migrate(ctx, testPool); err != nil {
			fmt.Fprintf(os.Stderr, "migrate again: %v\n", err)
			return 1
		}

		return m.Run()
	}()

	os.Exit(code)
}

func seedDirectory(t *testing.T, repo *PgRepository) (*Patient, *Doctor) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	p := &Patient{
		ID: uuid.New(), Name: "Ana Torres", Age: 34, Gender: GenderFemale,
		Email: "ana-" + suffix + "@example.com", CreatedAt: testNow, UpdatedAt: testNow,
	}
	d := &Doctor{
		ID: uuid.New(), Name: "Luis Prieto", Specialty: "Cardiology", LicenseNumber: "LIC-" + suffix,
		Email: "luis-" + suffix + "@example.com", Active: true, CreatedAt: testNow, UpdatedAt: testNow,
	}
	require.NoError(t, repo.CreatePatient(ctx, p))
	require.NoError(t, repo.CreateDoctor(ctx, d))
	return p, d
}

func newPgAppointment(t *testing.T, patientID, doctorID uuid.UUID, start time.Time) *scheduling.Appointment {
	t.Helper()
	slot, err := scheduling.NewTimeSlot(start, testNow)
	require.NoError(t, err)
	return scheduling.NewAppointment(patientID, doctorID, slot, "first visit", testNow)
}

func TestPgRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPgRepository(testPool)
	p, d := seedDirectory(t, repo)

	appt := newPgAppointment(t, p.ID, d.ID, time.Date(2030, time.March, 11, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Save(ctx, appt))

	diagnosis := "hypertension"
	require.NoError(t, appt.Confirm(scheduling.Doctor, testNow))
	require.NoError(t, appt.AddClinicalNotes(scheduling.ClinicalNotesInput{
		Observations: "elevated blood pressure",
		Diagnosis:    &diagnosis,
	}, scheduling.Doctor, testNow))
	require.NoError(t, repo.Save(ctx, appt))

	got, err := repo.FindByID(ctx, appt.ID())
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusConfirmed, got.Status())
	assert.True(t, appt.TimeSlot().StartTime().Equal(got.TimeSlot().StartTime()))

	notes, ok := got.ClinicalNotes()
	require.True(t, ok)
	assert.Equal(t, "elevated blood pressure", notes.Observations())
	require.NotNil(t, notes.Diagnosis())
	assert.Equal(t, diagnosis, *notes.Diagnosis())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	byPatient, err := repo.FindByPatientID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, byPatient, 1)
}

func TestPgRepository_ExclusionConstraint(t *testing.T) {
	ctx := context.Background()
	repo := NewPgRepository(testPool)
	p, d := seedDirectory(t, repo)
	day := time.Date(2030, time.March, 12, 0, 0, 0, 0, time.UTC)

	first := newPgAppointment(t, p.ID, d.ID, day.Add(10*time.Hour))
	require.NoError(t, repo.Save(ctx, first))

	// 10:15 falls inside the first booking's buffer window
	clash := newPgAppointment(t, p.ID, d.ID, day.Add(10*time.Hour+15*time.Minute))
	err := repo.Save(ctx, clash)
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict)

	adjacent := newPgAppointment(t, p.ID, d.ID, day.Add(11*time.Hour))
	require.NoError(t, repo.Save(ctx, adjacent))

	require.NoError(t, first.Cancel(scheduling.Doctor, testNow))
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, clash), "cancelled bookings release the window")

	live, err := repo.FindByDoctorAndTimeRange(ctx, d.ID, day.Add(9*time.Hour), day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Len(t, live, 2)
}

func TestPgRepository_DirectoryUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewPgRepository(testPool)
	p, d := seedDirectory(t, repo)

	dupPatient := *p
	dupPatient.ID = uuid.New()
	assert.ErrorIs(t, repo.CreatePatient(ctx, &dupPatient), scheduling.ErrAlreadyExists)

	dupDoctor := *d
	dupDoctor.ID = uuid.New()
	assert.ErrorIs(t, repo.CreateDoctor(ctx, &dupDoctor), scheduling.ErrAlreadyExists)

	_, err := repo.GetDoctorByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestPgRepository_Outbox(t *testing.T) {
	ctx := context.Background()
	repo := NewPgRepository(testPool)

	apptID := uuid.New()
	for _, et := range []string{EventAppointmentCreated, EventAppointmentConfirmed} {
		require.NoError(t, repo.InsertEvent(ctx, EventLog{
			EventType:     et,
			AppointmentID: &apptID,
			Payload:       []byte(`{"actor":"DOCTOR"}`),
			CreatedAt:     testNow,
		}))
	}

	batch, err := repo.FetchUnpublished(ctx, 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(batch), 2)
	for i := 1; i < len(batch); i++ {
		assert.Less(t, batch[i-1].ID, batch[i].ID)
	}

	for _, ev := range batch {
		require.NoError(t, repo.MarkPublished(ctx, ev.ID, testNow))
	}

	left, err := repo.FetchUnpublished(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, left)
}
