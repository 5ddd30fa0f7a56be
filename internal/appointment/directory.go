package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type NewPatientInput struct {
	Name      string
	Age       int
	Gender    Gender
	Address   string
	Phone     string
	Email     string
	Allergies *string
}

type NewDoctorInput struct {
	Name          string
	Specialty     string
	LicenseNumber string
	Phone         string
	Email         string
}

func (s *Service) RegisterPatient(ctx context.Context, in NewPatientInput) (*Patient, error) {
	now := s.clock.Now()

	var allergies *string
	if in.Allergies != nil {
		if a := strings.TrimSpace(*in.Allergies); a != "" {
			allergies = &a
		}
	}

	p := &Patient{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		Age:       in.Age,
		Gender:    Gender(strings.ToUpper(string(in.Gender))),
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Allergies: allergies,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.directory.CreatePatient(ctx, p); err != nil {
		return nil, passDomain("create patient", err)
	}
	return p, nil
}

func (s *Service) RegisterDoctor(ctx context.Context, in NewDoctorInput) (*Doctor, error) {
	now := s.clock.Now()

	d := &Doctor{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(in.Name),
		Specialty:     strings.TrimSpace(in.Specialty),
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.directory.CreateDoctor(ctx, d); err != nil {
		return nil, passDomain("create doctor", err)
	}
	return d, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.directory.GetPatientByID(ctx, id)
	if err != nil {
		return nil, passDomain("get patient", err)
	}
	return p, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.directory.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, passDomain("get doctor", err)
	}
	return d, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	patients, err := s.directory.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.directory.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}
