package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

const (
	doctorCount  = 100
	patientCount = 2000
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.Env)

	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatalf("seed needs STORAGE_DRIVER=%s", config.StoragePostgres)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, log)
	if err == nil {
		err = db.Migrate(connectCtx, pool)
	}
	cancel()
	if err != nil {
		log.WithError(err).Fatal("postgres setup error")
	}
	defer pool.Close()

	repo := appointment.NewPgRepository(pool)
	svc := appointment.NewService(appointment.Deps{
		Appointments: repo,
		Directory:    repo,
		Logger:       log,
	})

	faker := gofakeit.New(time.Now().UnixNano())

	if err := seedDoctors(ctx, svc, faker, doctorCount, log); err != nil {
		log.WithError(err).Fatal("seed doctors")
	}
	if err := seedPatients(ctx, svc, faker, patientCount, log); err != nil {
		log.WithError(err).Fatal("seed patients")
	}

	log.Info("seed complete")
}

func seedDoctors(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, count int, log logrus.FieldLogger) error {
	log.Infof("seeding %d doctors", count)

	for i := 0; i < count; i++ {
		_, err := svc.RegisterDoctor(ctx, appointment.NewDoctorInput{
			Name:          "Dr. " + faker.Name(),
			Specialty:     specialties[faker.Number(0, len(specialties)-1)],
			LicenseNumber: fmt.Sprintf("LIC-%06d", faker.Number(0, 999999)),
			Phone:         faker.Phone(),
			Email:         faker.Email(),
		})
		if errors.Is(err, scheduling.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("doctor %d: %w", i, err)
		}
	}

	log.Info("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, count int, log logrus.FieldLogger) error {
	log.Infof("seeding %d patients", count)

	genders := []appointment.Gender{appointment.GenderMale, appointment.GenderFemale}

	for i := 0; i < count; i++ {
		in := appointment.NewPatientInput{
			Name:    faker.Name(),
			Age:     faker.Number(0, 95),
			Gender:  genders[faker.Number(0, 1)],
			Address: faker.Street() + ", " + faker.City(),
			Phone:   faker.Phone(),
			Email:   faker.Email(),
		}
		if faker.Bool() {
			allergy := faker.Noun()
			in.Allergies = &allergy
		}

		_, err := svc.RegisterPatient(ctx, in)
		if errors.Is(err, scheduling.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("patient %d: %w", i, err)
		}

		if (i+1)%500 == 0 {
			log.Infof("patients seeded: %d/%d", i+1, count)
		}
	}

	log.Info("patients seeded")
	return nil
}
