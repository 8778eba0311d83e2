package booking

import "fmt"

// Kind distinguishes a scheduled service visit from an immediate consultation.
type Kind string

const (
	KindStandard     Kind = "STANDARD"
	KindConsultation Kind = "CONSULTATION"
)

// Booking modes as sent by the booking form.
const (
	ModeBook    = "book"
	ModeConsult = "consult"
)

// KindFromMode maps the form's booking mode onto a Kind. An empty mode is a standard booking.
func KindFromMode(mode string) (Kind, error) {
	switch mode {
	case "", ModeBook:
		return KindStandard, nil
	case ModeConsult:
		return KindConsultation, nil
	}
	return "", fmt.Errorf("unknown booking mode: %s", mode)
}

// Mode returns the form representation of the kind.
func (k Kind) Mode() string {
	if k == KindConsultation {
		return ModeConsult
	}
	return ModeBook
}

// ParseKind converts a stored value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStandard, KindConsultation:
		return Kind(s), nil
	}
	return "", fmt.Errorf("invalid booking kind: %s", s)
}
