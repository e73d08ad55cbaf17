package aggregates

import (
	"time"

	"github.com/google/uuid"
)

// WriteTxOwnership says who opens the transaction around a write method.
type WriteTxOwnership string

// WriteTxOwnedByAggregate: the aggregate opens and commits it; callers never pass one in.
const WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"

// ReadPolicy says which reads an aggregate exposes next to its writes.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped: only what a write needs to decide.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicyReportReads: also lock-free report reads such as the pricing report.
	ReadPolicyReportReads ReadPolicy = "report_reads"
)

// Contract is the self-description each aggregate returns.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Notes            string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Scope points a price line at exactly one of an annex or an avenant.
type Scope struct {
	AnnexID   uuid.UUID
	AvenantID uuid.UUID
}

func AnnexScope(id uuid.UUID) Scope   { return Scope{AnnexID: id} }
func AvenantScope(id uuid.UUID) Scope { return Scope{AvenantID: id} }

// Valid reports whether exactly one side of the scope is set.
func (s Scope) Valid() bool {
	return (s.AnnexID == uuid.Nil) != (s.AvenantID == uuid.Nil)
}

func (s Scope) IsAvenant() bool { return s.AvenantID != uuid.Nil }

func (s Scope) String() string {
	if s.IsAvenant() {
		return "avenant:" + s.AvenantID.String()
	}
	return "annex:" + s.AnnexID.String()
}

// DateOnly truncates t to midnight UTC; start/end dates carry no time of day.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
