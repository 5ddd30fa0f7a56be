package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// MemoryRepository keeps everything in process. It backs STORAGE_DRIVER=memory and the tests.
// Aggregates are stored as snapshots so callers never share state with the store.
type MemoryRepository struct {
	mu sync.RWMutex

	appointments map[uuid.UUID]scheduling.Snapshot
	patients     map[uuid.UUID]Patient
	doctors      map[uuid.UUID]Doctor
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]scheduling.Snapshot),
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
	}
}

func (r *MemoryRepository) Save(_ context.Context, appt *scheduling.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appointments[appt.ID()] = appt.Snapshot()
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	r.mu.RLock()
	s, ok := r.appointments[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return scheduling.RestoreAppointment(s)
}

func (r *MemoryRepository) FindByDoctorAndTimeRange(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]*scheduling.Appointment, error) {
	return r.collect(func(s scheduling.Snapshot) bool {
		if s.DoctorID != doctorID || s.Status == string(scheduling.StatusCancelled) {
			return false
		}
		slot := scheduling.RestoreTimeSlot(s.StartTime)
		return slot.StartTime().Before(end) && slot.BufferEndTime().After(start)
	})
}

func (r *MemoryRepository) FindByPatientID(_ context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error) {
	return r.collect(func(s scheduling.Snapshot) bool { return s.PatientID == patientID })
}

func (r *MemoryRepository) FindByDoctorID(_ context.Context, doctorID uuid.UUID) ([]*scheduling.Appointment, error) {
	return r.collect(func(s scheduling.Snapshot) bool { return s.DoctorID == doctorID })
}

func (r *MemoryRepository) FindAll(_ context.Context) ([]*scheduling.Appointment, error) {
	return r.collect(func(scheduling.Snapshot) bool { return true })
}

func (r *MemoryRepository) collect(match func(scheduling.Snapshot) bool) ([]*scheduling.Appointment, error) {
	r.mu.RLock()
	var snaps []scheduling.Snapshot
	for _, s := range r.appointments {
		if match(s) {
			snaps = append(snaps, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartTime.Before(snaps[j].StartTime)
	})

	result := make([]*scheduling.Appointment, 0, len(snaps))
	for _, s := range snaps {
		a, err := scheduling.RestoreAppointment(s)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// Directory

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.patients {
		if strings.EqualFold(existing.Email, p.Email) {
			return scheduling.NewError(scheduling.KindAlreadyExists, "a patient with this email already exists")
		}
	}
	r.patients[p.ID] = *p
	return nil
}

func (r *MemoryRepository) CreateDoctor(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.doctors {
		if existing.LicenseNumber == d.LicenseNumber || strings.EqualFold(existing.Email, d.Email) {
			return scheduling.NewError(scheduling.KindAlreadyExists, "a doctor with this license number or email already exists")
		}
	}
	r.doctors[d.ID] = *d
	return nil
}

func (r *MemoryRepository) ListPatients(_ context.Context) ([]Patient, error) {
	r.mu.RLock()
	result := make([]Patient, 0, len(r.patients))
	for _, p := range r.patients {
		result = append(result, p)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *MemoryRepository) ListDoctors(_ context.Context) ([]Doctor, error) {
	r.mu.RLock()
	result := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		result = append(result, d)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Event log

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) FetchUnpublished(_ context.Context, limit int) ([]EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []EventLog
	for _, ev := range r.events {
		if ev.PublishedAt != nil {
			continue
		}
		result = append(result, ev)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *MemoryRepository) MarkPublished(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.events {
		if r.events[i].ID == id && r.events[i].PublishedAt == nil {
			t := at
			r.events[i].PublishedAt = &t
		}
	}
	return nil
}

// Events returns a copy of the event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
