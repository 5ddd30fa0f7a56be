package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string        `env:"SIM_API_BASE_URL" envDefault:"http://localhost:8080"`
	Duration     time.Duration `env:"SIM_DURATION" envDefault:"30s"`
	Workers      int           `env:"SIM_WORKERS" envDefault:"10"`
	BookingRatio float64       `env:"SIM_BOOKING_RATIO" envDefault:"0.4"`
	ConfirmRatio float64       `env:"SIM_CONFIRM_RATIO" envDefault:"0.15"`
	CancelRatio  float64       `env:"SIM_CANCEL_RATIO" envDefault:"0.05"`
	ReadRatio    float64       `env:"SIM_READ_RATIO" envDefault:"0.4"`
	DaysAhead    int           `env:"SIM_DAYS_AHEAD" envDefault:"14"` // bookings land 2..2+N days out
}

type bookedAppointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID

	mu           sync.RWMutex
	appointments []bookedAppointment
}

func (dp *DataPool) AddAppointment(a bookedAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (bookedAppointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return bookedAppointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && (status == http.StatusConflict || status == http.StatusUnprocessableEntity):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking       OperationMetrics
	Confirm       OperationMetrics
	Cancel        OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Availability  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	hours   [2]int
	loc     *time.Location
	issuer  *auth.Issuer
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     logrus.FieldLogger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load base config: %v", err)
	}
	log := logging.New(baseCfg.LogLevel, baseCfg.Env)

	var cfg SimConfig
	if err := env.Parse(&cfg); err != nil {
		log.WithError(err).Fatal("parse simulator config")
	}
	if err := validateConfig(&cfg); err != nil {
		log.WithError(err).Fatal("invalid simulator config")
	}

	log.WithFields(logrus.Fields{
		"duration": cfg.Duration.String(),
		"workers":  cfg.Workers,
		"booking":  cfg.BookingRatio,
		"confirm":  cfg.ConfirmRatio,
		"cancel":   cfg.CancelRatio,
		"read":     cfg.ReadRatio,
	}).Info("simulator starting")

	sim := &Simulator{
		config: cfg,
		hours:  [2]int{baseCfg.OpeningHour, baseCfg.ClosingHour},
		loc:    baseCfg.ClinicLocation(),
		issuer: auth.NewIssuer(baseCfg.JWTSecret, time.Hour),
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sim.pool, err = sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("load data pool")
	}
	log.Infof("loaded: %d patients, %d doctors", len(sim.pool.Patients), len(sim.pool.Doctors))

	sim.Run()
	sim.PrintReport()
}

func validateConfig(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total <= 0 {
		return fmt.Errorf("operation ratios must add up to more than zero")
	}
	cfg.BookingRatio /= total
	cfg.ConfirmRatio /= total
	cfg.CancelRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	admin, _, err := s.issuer.Issue("simulator", auth.RoleAdmin)
	if err != nil {
		return nil, err
	}

	var patients, doctors struct {
		Items []struct {
			ID uuid.UUID `json:"id"`
		} `json:"items"`
	}
	if err := s.getJSON(ctx, admin, "/patients", &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if err := s.getJSON(ctx, admin, "/doctors", &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	dp := &DataPool{}
	for _, p := range patients.Items {
		dp.Patients = append(dp.Patients, p.ID)
	}
	for _, d := range doctors.Items {
		dp.Doctors = append(dp.Doctors, d.ID)
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Infof("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	booking := s.config.BookingRatio
	confirm := booking + s.config.ConfirmRatio
	cancelAt := confirm + s.config.CancelRatio

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch r := rng.Float64(); {
		case r < booking:
			s.doBooking(ctx, rng)
		case r < confirm:
			s.doConfirm(ctx, rng)
		case r < cancelAt:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doAvailability(ctx, rng)
			}
		}
	}
}

// randomStart picks an on-the-hour start inside working hours, far enough out
// that cancellations and reschedules clear the lead time.
func (s *Simulator) randomStart(rng *rand.Rand) time.Time {
	day := time.Now().In(s.loc).AddDate(0, 0, 2+rng.Intn(s.config.DaysAhead))
	hour := s.hours[0] + rng.Intn(s.hours[1]-s.hours[0])
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, s.loc)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	body := map[string]string{
		"patient_id": patientID.String(),
		"doctor_id":  doctorID.String(),
		"start_time": s.randomStart(rng).Format(time.RFC3339),
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", s.token(patientID, auth.RolePatient), body, &created)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated && created.ID != uuid.Nil {
		s.pool.AddAppointment(bookedAppointment{ID: created.ID, PatientID: patientID, DoctorID: doctorID})
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm",
		s.token(appt.DoctorID, auth.RoleDoctor), nil, nil)
	s.metrics.Confirm.Record(time.Since(start), status, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel",
		s.token(appt.PatientID, auth.RolePatient), nil, nil)
	s.metrics.Cancel.Record(time.Since(start), status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments/"+appt.ID.String(),
		s.token(appt.PatientID, auth.RolePatient), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status, err)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments", s.token(patientID, auth.RolePatient), nil, nil)
	s.metrics.ListByPatient.Record(time.Since(start), status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := s.randomStart(rng).Format("2006-01-02")

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/doctors/"+doctorID.String()+"/availability?date="+date,
		s.token(patientID, auth.RolePatient), nil, nil)
	s.metrics.Availability.Record(time.Since(start), status, err)
}

func (s *Simulator) token(subject uuid.UUID, role auth.Role) string {
	tok, _, err := s.issuer.Issue(subject.String(), role)
	if err != nil {
		s.log.WithError(err).Fatal("issue token")
	}
	return tok
}

func (s *Simulator) getJSON(ctx context.Context, token, path string, out any) error {
	status, err := s.call(ctx, http.MethodGet, path, token, nil, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, status)
	}
	return nil
}

// call performs one API request and decodes a 2xx body into out when given.
func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Doctor Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
