package appointment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var testNow = time.Date(2030, time.March, 10, 9, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type mockLocker struct{ mock.Mock }

func (m *mockLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, doctorID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

type failingEvents struct{ *MemoryRepository }

func (failingEvents) InsertEvent(context.Context, EventLog) error {
	return errors.New("event_logs unavailable")
}

type fixture struct {
	svc     *Service
	repo    *MemoryRepository
	clock   *fakeClock
	hook    *logtest.Hook
	patient *Patient
	doctor  *Doctor
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	clock := &fakeClock{now: testNow}
	logger, hook := logtest.NewNullLogger()

	deps := Deps{
		Appointments: repo,
		Directory:    repo,
		Events:       repo,
		Clock:        clock,
		Metrics:      metrics.New(),
		Logger:       logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc := NewService(deps)
	ctx := context.Background()

	patient, err := svc.RegisterPatient(ctx, NewPatientInput{
		Name:   "Ana Torres",
		Age:    34,
		Gender: "female",
		Email:  "Ana@Example.com",
	})
	require.NoError(t, err)

	doctor, err := svc.RegisterDoctor(ctx, NewDoctorInput{
		Name:          "Luis Prieto",
		Specialty:     "Cardiology",
		LicenseNumber: "LIC-001",
		Email:         "luis@example.com",
	})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, clock: clock, hook: hook, patient: patient, doctor: doctor}
}

// at formats an instant on 2030-03-<day> in UTC.
func at(day, hour, minute int) string {
	return time.Date(2030, time.March, day, hour, minute, 0, 0, time.UTC).Format(time.RFC3339)
}

func (f *fixture) book(t *testing.T, start string) *CreatedAppointment {
	t.Helper()
	created, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: start,
	})
	require.NoError(t, err)
	return created
}

func eventTypes(events []EventLog) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func TestRegister_NormalizesDirectoryEntries(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, GenderFemale, f.patient.Gender)
	assert.Equal(t, "ana@example.com", f.patient.Email)
	assert.True(t, f.doctor.Active)

	_, err := f.svc.RegisterDoctor(context.Background(), NewDoctorInput{Name: "Other", LicenseNumber: "LIC-001", Email: "x@example.com"})
	assert.ErrorIs(t, err, scheduling.ErrAlreadyExists)
}

func TestCreateAppointment_OverlapScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.book(t, at(11, 10, 0))
	assert.Equal(t, scheduling.StatusReserved, first.Status)
	assert.Equal(t, 10, first.StartTime.Hour())
	assert.Equal(t, time.Date(2030, time.March, 11, 10, 30, 0, 0, time.UTC), first.EndTime)
	assert.Equal(t, time.Date(2030, time.March, 11, 11, 0, 0, 0, time.UTC), first.BufferEndTime)
	assert.Equal(t, testNow, first.CreatedAt)

	_, err := f.svc.CreateAppointment(ctx, CreateAppointmentInput{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: at(11, 10, 15),
	})
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict)

	f.book(t, at(11, 11, 0))

	assert.Equal(t, []string{EventAppointmentCreated, EventAppointmentCreated}, eventTypes(f.repo.Events()))
}

func TestCreateAppointment_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		in      CreateAppointmentInput
		wantErr error
	}{
		{
			name:    "unknown patient",
			in:      CreateAppointmentInput{PatientID: uuid.New(), DoctorID: f.doctor.ID, StartTime: at(11, 10, 0)},
			wantErr: ErrPatientNotFound,
		},
		{
			name:    "unknown doctor",
			in:      CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: uuid.New(), StartTime: at(11, 10, 0)},
			wantErr: ErrDoctorNotFound,
		},
		{
			name:    "unparseable start",
			in:      CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, StartTime: "tomorrow at ten"},
			wantErr: scheduling.ErrInvalidTimeSlot,
		},
		{
			name:    "start in the past",
			in:      CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, StartTime: at(9, 10, 0)},
			wantErr: scheduling.ErrInvalidTimeSlot,
		},
		{
			name:    "after closing",
			in:      CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, StartTime: at(11, 19, 0)},
			wantErr: scheduling.ErrOutsideWorkingHours,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := f.repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAppointment_NotFoundIsDomainKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: f.doctor.ID, StartTime: at(11, 10, 0),
	})
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
	assert.Equal(t, scheduling.KindNotFound, scheduling.KindOf(err))
}

func TestConfirmAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.book(t, at(11, 10, 0))

	_, err := f.svc.ConfirmAppointment(ctx, StatusChangeInput{AppointmentID: created.ID, Actor: scheduling.Patient})
	assert.ErrorIs(t, err, scheduling.ErrForbidden)

	f.clock.now = testNow.Add(time.Minute)
	res, err := f.svc.ConfirmAppointment(ctx, StatusChangeInput{AppointmentID: created.ID, Actor: scheduling.Doctor})
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusConfirmed, res.Status)
	assert.Equal(t, f.clock.now, res.UpdatedAt)

	stored, err := f.svc.GetAppointment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusConfirmed, stored.Status)

	_, err = f.svc.ConfirmAppointment(ctx, StatusChangeInput{AppointmentID: created.ID, Actor: scheduling.Doctor})
	assert.ErrorIs(t, err, scheduling.ErrInvalidTransition)

	_, err = f.svc.ConfirmAppointment(ctx, StatusChangeInput{AppointmentID: uuid.New(), Actor: scheduling.Doctor})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelAppointment_LeadTimeAndSlotRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 23h after testNow
	created := f.book(t, at(11, 8, 0))

	_, err := f.svc.CancelAppointment(ctx, StatusChangeInput{AppointmentID: created.ID, Actor: scheduling.Patient})
	assert.ErrorIs(t, err, scheduling.ErrLeadTimeViolation)

	res, err := f.svc.CancelAppointment(ctx, StatusChangeInput{AppointmentID: created.ID, Actor: scheduling.Doctor})
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCancelled, res.Status)

	// a cancelled appointment no longer blocks its slot
	f.book(t, at(11, 8, 0))

	_, err = f.svc.CancelAppointment(ctx, StatusChangeInput{AppointmentID: created.ID, Actor: scheduling.Doctor})
	assert.ErrorIs(t, err, scheduling.ErrInvalidTransition)
}

func TestRescheduleAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.book(t, at(12, 10, 0))

	res, err := f.svc.RescheduleAppointment(ctx, RescheduleAppointmentInput{
		AppointmentID: created.ID,
		NewStartTime:  at(12, 14, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 14, res.StartTime.Hour())
	assert.Equal(t, res.StartTime.Add(30*time.Minute), res.EndTime)
	assert.Equal(t, res.StartTime.Add(time.Hour), res.BufferEndTime)

	// the old slot is free again
	f.book(t, at(12, 10, 0))

	events := eventTypes(f.repo.Events())
	assert.Contains(t, events, EventAppointmentRescheduled)
}

func TestRescheduleAppointment_LeadTimeBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.book(t, at(11, 10, 0))

	f.clock.now = time.Date(2030, time.March, 10, 10, 1, 0, 0, time.UTC)
	_, err := f.svc.RescheduleAppointment(ctx, RescheduleAppointmentInput{AppointmentID: created.ID, NewStartTime: at(11, 15, 0)})
	assert.ErrorIs(t, err, scheduling.ErrLeadTimeViolation)

	f.clock.now = time.Date(2030, time.March, 10, 10, 0, 0, 0, time.UTC)
	_, err = f.svc.RescheduleAppointment(ctx, RescheduleAppointmentInput{AppointmentID: created.ID, NewStartTime: at(11, 15, 0)})
	assert.NoError(t, err)
}

func TestRescheduleAppointment_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moving := f.book(t, at(12, 10, 0))
	f.book(t, at(12, 14, 0))

	_, err := f.svc.RescheduleAppointment(ctx, RescheduleAppointmentInput{AppointmentID: moving.ID, NewStartTime: at(12, 14, 30)})
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict, "overlaps another appointment")

	_, err = f.svc.RescheduleAppointment(ctx, RescheduleAppointmentInput{AppointmentID: moving.ID, NewStartTime: at(12, 10, 30)})
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict, "overlaps its own current slot")

	stored, err := f.svc.GetAppointment(ctx, moving.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.StartTime.Hour())
}

func TestClinicalNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.book(t, at(11, 10, 0))
	diagnosis := "hypertension"

	in := ClinicalNotesInput{
		AppointmentID: created.ID,
		Actor:         scheduling.Doctor,
		Observations:  "BP 150/95, patient reports headaches",
		Diagnosis:     &diagnosis,
	}

	_, err := f.svc.AddClinicalNotes(ctx, ClinicalNotesInput{AppointmentID: created.ID, Actor: scheduling.Patient, Observations: "x"})
	assert.ErrorIs(t, err, scheduling.ErrForbidden)

	_, err = f.svc.UpdateClinicalNotes(ctx, in)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	res, err := f.svc.AddClinicalNotes(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.ID)
	assert.Equal(t, in.Observations, res.ClinicalNotes.Observations)
	assert.False(t, res.ClinicalNotes.Complete)

	_, err = f.svc.AddClinicalNotes(ctx, in)
	assert.ErrorIs(t, err, scheduling.ErrAlreadyExists)

	treatment := "lisinopril 10mg"
	in.Treatment = &treatment
	res, err = f.svc.UpdateClinicalNotes(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.ClinicalNotes.Complete)

	view, err := f.svc.GetAppointment(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, view.ClinicalNotes)
	assert.Equal(t, "lisinopril 10mg", *view.ClinicalNotes.Treatment)

	for _, ev := range f.repo.Events() {
		assert.NotContains(t, string(ev.Payload), "headaches")
	}

	_, err = f.svc.AddClinicalNotes(ctx, ClinicalNotesInput{
		AppointmentID: f.book(t, at(11, 12, 0)).ID,
		Actor:         scheduling.Doctor,
		Observations:  strings.Repeat("a", scheduling.MaxObservationsLength+1),
	})
	assert.ErrorIs(t, err, scheduling.ErrInvalidClinicalNotes)
}

func TestScheduleBusy(t *testing.T) {
	locker := &mockLocker{}
	f := newFixture(t, func(d *Deps) { d.Locker = locker })

	locker.On("WithDoctorLock", mock.Anything, f.doctor.ID).Return(redisclient.ErrLockNotAcquired).Once()

	_, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: at(11, 10, 0),
	})
	assert.ErrorIs(t, err, ErrScheduleBusy)

	locker.On("WithDoctorLock", mock.Anything, f.doctor.ID).Return(nil).Once()
	f.book(t, at(11, 10, 0))

	locker.AssertExpectations(t)
}

func TestEventLogFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Events = failingEvents{}
	})

	f.book(t, at(11, 10, 0))

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, EventAppointmentCreated, entry.Data["event_type"])
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.svc.RegisterDoctor(ctx, NewDoctorInput{Name: "Marta Gil", LicenseNumber: "LIC-002", Email: "marta@example.com"})
	require.NoError(t, err)

	late := f.book(t, at(12, 15, 0))
	early := f.book(t, at(11, 9, 0))
	_, err = f.svc.CreateAppointment(ctx, CreateAppointmentInput{PatientID: f.patient.ID, DoctorID: other.ID, StartTime: at(11, 9, 0)})
	require.NoError(t, err)

	all, err := f.svc.ListAppointments(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := f.svc.ListAppointments(ctx, ListFilter{DoctorID: f.doctor.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, early.ID, mine[0].ID)
	assert.Equal(t, late.ID, mine[1].ID)

	both, err := f.svc.ListAppointments(ctx, ListFilter{PatientID: f.patient.ID, DoctorID: other.ID})
	require.NoError(t, err)
	assert.Len(t, both, 1)

	none, err := f.svc.ListAppointments(ctx, ListFilter{PatientID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDoctorAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, at(11, 10, 0))

	slots, err := f.svc.DoctorAvailability(ctx, f.doctor.ID, time.Date(2030, time.March, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var hours []int
	for _, s := range slots {
		hours = append(hours, s.StartTime.Hour())
	}
	assert.Equal(t, []int{8, 9, 11, 12, 13, 14, 15, 16, 17}, hours)

	_, err = f.svc.DoctorAvailability(ctx, uuid.New(), testNow)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestCreateAppointment_WorkingHoursUseOneZone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 23:00Z written with a +09:00 offset
	_, err := f.svc.CreateAppointment(ctx, CreateAppointmentInput{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: "2030-03-12T08:00:00+09:00",
	})
	assert.ErrorIs(t, err, scheduling.ErrOutsideWorkingHours)

	// 14:00Z written with a +05:00 offset
	created := f.book(t, "2030-03-11T19:00:00+05:00")
	assert.True(t, created.StartTime.Equal(time.Date(2030, time.March, 11, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, created.StartTime.Location())

	slots, err := f.svc.DoctorAvailability(ctx, f.doctor.ID, time.Date(2030, time.March, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	for _, s := range slots {
		assert.NotEqual(t, 14, s.StartTime.Hour(), "booked hour is no longer offered")
	}
}

func TestCreateAppointment_ClinicZoneHours(t *testing.T) {
	bogota := time.FixedZone("-05:00", -5*60*60)
	f := newFixture(t, func(d *Deps) {
		d.Policy = scheduling.NewPolicy(d.Appointments, scheduling.DefaultOpeningHour, scheduling.DefaultClosingHour,
			scheduling.WithLocation(bogota))
	})

	_, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		StartTime: at(11, 10, 0),
	})
	assert.ErrorIs(t, err, scheduling.ErrOutsideWorkingHours, "10:00Z is 05:00 in the clinic")

	f.book(t, "2030-03-11T08:00:00-05:00")
}
