package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const (
	PatientCancellationLeadTime = 24 * time.Hour
	DoctorCancellationLeadTime  = time.Hour
	RescheduleLeadTime          = 24 * time.Hour
)

// Actor is the role on whose behalf an aggregate operation runs.
// The set of implementations is closed: PatientActor and DoctorActor.
type Actor interface {
	Role() string

	mayConfirm() bool
	mayWriteClinicalNotes() bool
	cancellationLeadTime() time.Duration
}

type PatientActor struct{}

func (PatientActor) Role() string                        { return "PATIENT" }
func (PatientActor) mayConfirm() bool                    { return false }
func (PatientActor) mayWriteClinicalNotes() bool         { return false }
func (PatientActor) cancellationLeadTime() time.Duration { return PatientCancellationLeadTime }

type DoctorActor struct{}

func (DoctorActor) Role() string                        { return "DOCTOR" }
func (DoctorActor) mayConfirm() bool                    { return true }
func (DoctorActor) mayWriteClinicalNotes() bool         { return true }
func (DoctorActor) cancellationLeadTime() time.Duration { return DoctorCancellationLeadTime }

var (
	Patient Actor = PatientActor{}
	Doctor  Actor = DoctorActor{}
)

// ParseActor maps a wire role name to its actor.
func ParseActor(v string) (Actor, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "PATIENT":
		return Patient, nil
	case "DOCTOR":
		return Doctor, nil
	default:
		return nil, fmt.Errorf("unknown actor type %q", v)
	}
}
