package conventions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Organisation is the insurer/company side of a convention. Read-only here.
type Organisation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Abbreviation string    `gorm:"column:abbreviation;not null" json:"abbreviation"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Organisation) TableName() string { return "organisation" }

func (o *Organisation) BeforeCreate(*gorm.DB) error { ensureID(&o.ID); return nil }

// Prestation is a billable item of the catalog. Read-only here.
type Prestation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceID uuid.UUID `gorm:"type:uuid;not null;index" json:"service_id"`
	Code      string    `gorm:"column:code;not null;index" json:"code"`
	Name      string    `gorm:"column:name;not null" json:"name"`

	NegotiatedPrice decimal.Decimal `gorm:"column:negotiated_price;type:decimal(12,2);not null;default:0" json:"negotiated_price"`
	PublicPrice     decimal.Decimal `gorm:"column:public_price;type:decimal(12,2);not null;default:0" json:"public_price"`
	Price           decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null;default:0" json:"price"`

	IsActive bool `gorm:"column:is_active;not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Prestation) TableName() string { return "prestation" }

func (p *Prestation) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

// PriceFor returns the catalog price selected by status; unknown selectors use the global price.
func (p Prestation) PriceFor(status PriceStatus) decimal.Decimal {
	switch status {
	case PriceNegotiated:
		return p.NegotiatedPrice
	case PricePublic:
		return p.PublicPrice
	default:
		return p.Price
	}
}

// Convention is the contract aggregate root. Never deleted, only terminated.
type Convention struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganisationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organisation_id"`
	Name           string    `gorm:"column:name;not null" json:"name"`

	// scheduled|active|terminated
	Status       ConventionStatus `gorm:"column:status;not null;index" json:"status"`
	ActivationAt *time.Time       `gorm:"column:activation_at;index" json:"activation_at,omitempty"`
	TerminatedAt *time.Time       `gorm:"column:terminated_at" json:"terminated_at,omitempty"`

	CreatedBy uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Convention) TableName() string { return "convention" }

func (c *Convention) BeforeCreate(*gorm.DB) error { ensureID(&c.ID); return nil }

// ConventionDetail carries the negotiated terms. Revisioned: a newer row is linked
// from its predecessor through UpdatedByID.
type ConventionDetail struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConventionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"convention_id"`
	AvenantID    *uuid.UUID `gorm:"type:uuid;index" json:"avenant_id,omitempty"`

	StartDate *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"column:end_date;index" json:"end_date,omitempty"`

	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:decimal(5,2);not null;default:0" json:"discount_percentage"`
	MaxPrice           decimal.Decimal `gorm:"column:max_price;type:decimal(12,2);not null;default:0" json:"max_price"`
	MinPrice           decimal.Decimal `gorm:"column:min_price;type:decimal(12,2);not null;default:0" json:"min_price"`

	Head        bool       `gorm:"column:head;not null;default:false" json:"head"`
	UpdatedByID *uuid.UUID `gorm:"column:updated_by_id;type:uuid;index" json:"updated_by_id,omitempty"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ConventionDetail) TableName() string { return "convention_detail" }

func (d *ConventionDetail) BeforeCreate(*gorm.DB) error { ensureID(&d.ID); return nil }

func (d *ConventionDetail) RevisionID() uuid.UUID { return d.ID }
func (d *ConventionDetail) Successor() *uuid.UUID { return d.UpdatedByID }

// Annex is a service-scoped pricing sheet under a convention.
type Annex struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConventionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_annex_convention_service,priority:1" json:"convention_id"`
	ServiceID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_annex_convention_service,priority:2" json:"service_id"`
	Name         string    `gorm:"column:name" json:"name"`

	// negotiated|public|global
	PrestationPrixStatus PriceStatus     `gorm:"column:prestation_prix_status;not null;default:'global'" json:"prestation_prix_status"`
	MinPrice             decimal.Decimal `gorm:"column:min_price;type:decimal(12,2);not null;default:0" json:"min_price"`
	IsActive             bool            `gorm:"column:is_active;not null;default:true" json:"is_active"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Annex) TableName() string { return "annex" }

func (a *Annex) BeforeCreate(*gorm.DB) error { ensureID(&a.ID); return nil }

// Avenant is a dated amendment to a convention's terms and prices. Revisioned like
// ConventionDetail; at most one per convention is active.
type Avenant struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConventionID uuid.UUID `gorm:"type:uuid;not null;index" json:"convention_id"`
	Description  string    `gorm:"column:description" json:"description"`

	// pending|scheduled|active|archived
	Status       AvenantStatus `gorm:"column:status;not null;index" json:"status"`
	Head         bool          `gorm:"column:head;not null;default:false" json:"head"`
	ActivationAt *time.Time    `gorm:"column:activation_at;index" json:"activation_at,omitempty"`
	InactiveAt   *time.Time    `gorm:"column:inactive_at" json:"inactive_at,omitempty"`

	CreatorID  uuid.UUID  `gorm:"type:uuid;not null" json:"creator_id"`
	ApproverID *uuid.UUID `gorm:"type:uuid" json:"approver_id,omitempty"`

	UpdatedByID *uuid.UUID `gorm:"column:updated_by_id;type:uuid;index" json:"updated_by_id,omitempty"`

	// {"source":"convention"|"avenant","source_avenant_id":...,"lines":N}
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Avenant) TableName() string { return "avenant" }

func (a *Avenant) BeforeCreate(*gorm.DB) error { ensureID(&a.ID); return nil }

func (a *Avenant) RevisionID() uuid.UUID { return a.ID }
func (a *Avenant) Successor() *uuid.UUID { return a.UpdatedByID }

// PrestationPricing is the company/patient split of one prestation inside exactly one
// scope: an annex or an avenant.
type PrestationPricing struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PrestationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"prestation_id"`
	AnnexID      *uuid.UUID `gorm:"type:uuid;index" json:"annex_id,omitempty"`
	AvenantID    *uuid.UUID `gorm:"type:uuid;index" json:"avenant_id,omitempty"`

	Prix                 decimal.Decimal `gorm:"column:prix;type:decimal(12,2);not null;default:0" json:"prix"`
	CompanyPrice         decimal.Decimal `gorm:"column:company_price;type:decimal(12,2);not null;default:0" json:"company_price"`
	PatientPrice         decimal.Decimal `gorm:"column:patient_price;type:decimal(12,2);not null;default:0" json:"patient_price"`
	MaxPriceExceeded     bool            `gorm:"column:max_price_exceeded;not null;default:false" json:"max_price_exceeded"`
	OriginalCompanyShare decimal.Decimal `gorm:"column:original_company_share;type:decimal(12,2);not null;default:0" json:"original_company_share"`
	OriginalPatientShare decimal.Decimal `gorm:"column:original_patient_share;type:decimal(12,2);not null;default:0" json:"original_patient_share"`

	Head         bool       `gorm:"column:head;not null;default:false" json:"head"`
	UpdatedByID  *uuid.UUID `gorm:"column:updated_by_id;type:uuid;index" json:"updated_by_id,omitempty"`
	ActivationAt *time.Time `gorm:"column:activation_at" json:"activation_at,omitempty"`

	CreatedBy uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (PrestationPricing) TableName() string { return "prestation_pricing" }

func (p *PrestationPricing) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

func (p *PrestationPricing) RevisionID() uuid.UUID { return p.ID }
func (p *PrestationPricing) Successor() *uuid.UUID { return p.UpdatedByID }

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
