package scheduling

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxObservationsLength = 5000
	MaxNoteFieldLength    = 1000
)

// ClinicalNotesInput carries raw text; nil optional fields mean absent.
type ClinicalNotesInput struct {
	Observations string
	Diagnosis    *string
	Treatment    *string
	FollowUp     *string
}

// ClinicalNotes is an immutable, validated clinical record.
type ClinicalNotes struct {
	observations string
	diagnosis    *string
	treatment    *string
	followUp     *string
}

func NewClinicalNotes(in ClinicalNotesInput) (ClinicalNotes, error) {
	observations := strings.TrimSpace(in.Observations)
	if observations == "" {
		return ClinicalNotes{}, NewError(KindInvalidClinicalNotes, "observations are required")
	}
	if utf8.RuneCountInString(observations) > MaxObservationsLength {
		return ClinicalNotes{}, NewError(KindInvalidClinicalNotes,
			fmt.Sprintf("observations cannot exceed %d characters", MaxObservationsLength))
	}

	diagnosis, err := normalizeNoteField("diagnosis", in.Diagnosis)
	if err != nil {
		return ClinicalNotes{}, err
	}
	treatment, err := normalizeNoteField("treatment", in.Treatment)
	if err != nil {
		return ClinicalNotes{}, err
	}
	followUp, err := normalizeNoteField("follow-up", in.FollowUp)
	if err != nil {
		return ClinicalNotes{}, err
	}

	return ClinicalNotes{
		observations: observations,
		diagnosis:    diagnosis,
		treatment:    treatment,
		followUp:     followUp,
	}, nil
}

func normalizeNoteField(name string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxNoteFieldLength {
		return nil, NewError(KindInvalidClinicalNotes,
			fmt.Sprintf("%s cannot exceed %d characters", name, MaxNoteFieldLength))
	}
	return &trimmed, nil
}

func (n ClinicalNotes) Observations() string { return n.observations }
func (n ClinicalNotes) Diagnosis() *string   { return cloneString(n.diagnosis) }
func (n ClinicalNotes) Treatment() *string   { return cloneString(n.treatment) }
func (n ClinicalNotes) FollowUp() *string    { return cloneString(n.followUp) }

// IsComplete is a reporting helper; completeness is not enforced on write.
func (n ClinicalNotes) IsComplete() bool {
	return n.observations != "" && n.diagnosis != nil && n.treatment != nil
}

// Input returns the normalized fields in their raw-input shape.
func (n ClinicalNotes) Input() ClinicalNotesInput {
	return ClinicalNotesInput{
		Observations: n.observations,
		Diagnosis:    n.Diagnosis(),
		Treatment:    n.Treatment(),
		FollowUp:     n.FollowUp(),
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
