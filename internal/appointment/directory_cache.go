package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedDirectory keeps recently read patients and doctors in memory.
// Only successful lookups are cached; not-found results always go to the store.
type CachedDirectory struct {
	next     Directory
	patients *lru.Cache[uuid.UUID, Patient]
	doctors  *lru.Cache[uuid.UUID, Doctor]
}

func NewCachedDirectory(next Directory, size int) (*CachedDirectory, error) {
	patients, err := lru.New[uuid.UUID, Patient](size)
	if err != nil {
		return nil, fmt.Errorf("create patient cache: %w", err)
	}
	doctors, err := lru.New[uuid.UUID, Doctor](size)
	if err != nil {
		return nil, fmt.Errorf("create doctor cache: %w", err)
	}

	return &CachedDirectory{
		next:     next,
		patients: patients,
		doctors:  doctors,
	}, nil
}

func (c *CachedDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := c.patients.Get(id); ok {
		return &p, nil
	}

	p, err := c.next.GetPatientByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.patients.Add(id, *p)
	return p, nil
}

func (c *CachedDirectory) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := c.doctors.Get(id); ok {
		return &d, nil
	}

	d, err := c.next.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.doctors.Add(id, *d)
	return d, nil
}

func (c *CachedDirectory) CreatePatient(ctx context.Context, p *Patient) error {
	if err := c.next.CreatePatient(ctx, p); err != nil {
		return err
	}
	c.patients.Add(p.ID, *p)
	return nil
}

func (c *CachedDirectory) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := c.next.CreateDoctor(ctx, d); err != nil {
		return err
	}
	c.doctors.Add(d.ID, *d)
	return nil
}

func (c *CachedDirectory) ListPatients(ctx context.Context) ([]Patient, error) {
	return c.next.ListPatients(ctx)
}

func (c *CachedDirectory) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return c.next.ListDoctors(ctx)
}
