package conventions

import "strings"

// AvenantStatus is the lifecycle state of an amendment.
type AvenantStatus string

const (
	AvenantPending   AvenantStatus = "pending"
	AvenantScheduled AvenantStatus = "scheduled"
	AvenantActive    AvenantStatus = "active"
	AvenantArchived  AvenantStatus = "archived"
)

func ParseAvenantStatus(s string) (AvenantStatus, bool) {
	st := AvenantStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case AvenantPending, AvenantScheduled, AvenantActive, AvenantArchived:
		return st, true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether from -> to is a legal amendment transition.
// scheduled -> scheduled is a reschedule. archived is terminal.
func (from AvenantStatus) CanTransitionTo(to AvenantStatus) bool {
	switch from {
	case AvenantPending:
		return to == AvenantScheduled || to == AvenantActive
	case AvenantScheduled:
		return to == AvenantScheduled || to == AvenantActive
	case AvenantActive:
		return to == AvenantArchived
	default:
		return false
	}
}

// ConventionStatus is the lifecycle state of a convention.
type ConventionStatus string

const (
	ConventionScheduled  ConventionStatus = "scheduled"
	ConventionActive     ConventionStatus = "active"
	ConventionTerminated ConventionStatus = "terminated"
)

func ParseConventionStatus(s string) (ConventionStatus, bool) {
	st := ConventionStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case ConventionScheduled, ConventionActive, ConventionTerminated:
		return st, true
	default:
		return "", false
	}
}

func (from ConventionStatus) CanTransitionTo(to ConventionStatus) bool {
	switch from {
	case ConventionScheduled:
		return to == ConventionScheduled || to == ConventionActive || to == ConventionTerminated
	case ConventionActive:
		return to == ConventionTerminated
	default:
		return false
	}
}

// PriceStatus selects which catalog price of a prestation an annex prices from.
type PriceStatus string

const (
	PriceNegotiated PriceStatus = "negotiated"
	PricePublic     PriceStatus = "public"
	PriceGlobal     PriceStatus = "global"
)

func ParsePriceStatus(s string) (PriceStatus, bool) {
	st := PriceStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case PriceNegotiated, PricePublic, PriceGlobal:
		return st, true
	case "":
		return PriceGlobal, true
	default:
		return "", false
	}
}
