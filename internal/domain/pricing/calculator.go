// Package pricing computes the company/patient split of a billable item under a
// convention's discount and ceiling. Everything here is pure: no I/O, no state.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits every monetary value is kept at.
const Places = 2

var (
	hundred = decimal.NewFromInt(100)

	// Tolerance is the largest accepted gap between a split's sum and its base price.
	Tolerance = decimal.New(1, -Places)

	ErrNegativePrice   = errors.New("price must be >= 0")
	ErrNegativeCeiling = errors.New("ceiling must be >= 0")
	ErrDiscountRange   = errors.New("discount percentage must be within [0,100]")
)

// Split is the outcome of one calculation.
type Split struct {
	CompanyShare         decimal.Decimal
	PatientShare         decimal.Decimal
	Exceeded             bool
	OriginalCompanyShare decimal.Decimal
	OriginalPatientShare decimal.Decimal
}

// Calculate splits base between company and patient.
//
// The company pays discount% of base, capped at ceiling when ceiling > 0; whatever the
// cap removes moves to the patient. Only the original company share is rounded
// (half away from zero, to Places); every other figure is exact addition/subtraction,
// so CompanyShare+PatientShare == base for any 2-place base.
func Calculate(base, discount, ceiling decimal.Decimal) Split {
	zero := decimal.Zero
	if !base.IsPositive() {
		return Split{
			CompanyShare:         zero,
			PatientShare:         zero,
			OriginalCompanyShare: zero,
			OriginalPatientShare: zero,
		}
	}
	base = base.Round(Places)

	origCompany := base.Mul(discount).Div(hundred).Round(Places)
	origPatient := base.Sub(origCompany)

	out := Split{
		CompanyShare:         origCompany,
		PatientShare:         origPatient,
		OriginalCompanyShare: origCompany,
		OriginalPatientShare: origPatient,
	}
	if ceiling.IsPositive() && origCompany.GreaterThan(ceiling) {
		out.Exceeded = true
		out.CompanyShare = ceiling
		out.PatientShare = origPatient.Add(origCompany.Sub(ceiling))
	}
	return out
}

// Exceeds reports whether a company share breaks the ceiling. A zero ceiling never does.
func Exceeds(company, ceiling decimal.Decimal) bool {
	return ceiling.IsPositive() && company.GreaterThan(ceiling)
}

// SumMatches reports whether company+patient equals total within Tolerance.
func SumMatches(company, patient, total decimal.Decimal) bool {
	return company.Add(patient).Sub(total).Abs().LessThanOrEqual(Tolerance)
}

// Validate checks calculator inputs.
func Validate(base, discount, ceiling decimal.Decimal) error {
	var errs []error
	if base.IsNegative() {
		errs = append(errs, ErrNegativePrice)
	}
	if ceiling.IsNegative() {
		errs = append(errs, ErrNegativeCeiling)
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		errs = append(errs, ErrDiscountRange)
	}
	return errors.Join(errs...)
}
