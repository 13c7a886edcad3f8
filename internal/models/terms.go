package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTerms is one of "Net 15", "Net 30", "Net 45", "Net 60", "COD" or "Advance N%".
type PaymentTerms string

const (
	PaymentNet15 PaymentTerms = "Net 15"
	PaymentNet30 PaymentTerms = "Net 30"
	PaymentNet45 PaymentTerms = "Net 45"
	PaymentNet60 PaymentTerms = "Net 60"
	PaymentCOD   PaymentTerms = "COD"
)

var advanceTermsPattern = regexp.MustCompile(`^Advance (\d{1,3})%$`)

func AdvancePayment(percent int) PaymentTerms {
	return PaymentTerms(fmt.Sprintf("Advance %d%%", percent))
}

func (p PaymentTerms) Validate() error {
	switch p {
	case PaymentNet15, PaymentNet30, PaymentNet45, PaymentNet60, PaymentCOD:
		return nil
	}
	if _, ok := p.advancePercent(); ok {
		return nil
	}
	return NewValidationError("paymentTerms", fmt.Sprintf("unsupported payment terms %q", string(p)))
}

func (p PaymentTerms) advancePercent() (int, bool) {
	m := advanceTermsPattern.FindStringSubmatch(string(p))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 100 {
		return 0, false
	}
	return n, true
}

// NetDays is the credit period in days; zero for COD and advance terms.
func (p PaymentTerms) NetDays() int {
	switch p {
	case PaymentNet15:
		return 15
	case PaymentNet30:
		return 30
	case PaymentNet45:
		return 45
	case PaymentNet60:
		return 60
	}
	return 0
}

// DueDate returns when payment falls due for an invoice raised at from.
func (p PaymentTerms) DueDate(from time.Time) time.Time {
	return from.AddDate(0, 0, p.NetDays())
}

// AdvanceAmount is the share of grandTotal payable up front.
func (p PaymentTerms) AdvanceAmount(grandTotal decimal.Decimal) decimal.Decimal {
	n, ok := p.advancePercent()
	if !ok {
		return decimal.Zero
	}
	return grandTotal.Mul(decimal.NewFromInt(int64(n))).Div(decimal.NewFromInt(100))
}

type UnitOfMeasure string

var unitsOfMeasure = map[UnitOfMeasure]struct{}{
	"pcs": {}, "nos": {}, "kg": {}, "g": {}, "ltr": {}, "ml": {},
	"mtr": {}, "cm": {}, "box": {}, "set": {}, "pack": {}, "dozen": {},
}

func (u UnitOfMeasure) Validate() error {
	if _, ok := unitsOfMeasure[UnitOfMeasure(strings.ToLower(string(u)))]; !ok {
		return NewValidationError("unitOfMeasure", fmt.Sprintf("unsupported unit %q", string(u)))
	}
	return nil
}

var (
	poNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/_-]{0,63}$`)
	hsnCodePattern  = regexp.MustCompile(`^(\d{4}|\d{6}|\d{8})$`)
	gstinPattern    = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	pinCodePattern  = regexp.MustCompile(`^[1-9]\d{5}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func ValidatePONumber(s string) error {
	if strings.TrimSpace(s) == "" {
		return NewValidationError("poNumber", "is required")
	}
	if !poNumberPattern.MatchString(s) {
		return NewValidationError("poNumber", fmt.Sprintf("malformed purchase order number %q", s))
	}
	return nil
}

// ValidateHSNCode accepts an empty code; HSN codes are optional on line items.
func ValidateHSNCode(s string) error {
	if s == "" || hsnCodePattern.MatchString(s) {
		return nil
	}
	return NewValidationError("hsnCode", fmt.Sprintf("malformed HSN code %q", s))
}

func ValidateGSTIN(s string) error {
	if s == "" || gstinPattern.MatchString(s) {
		return nil
	}
	return NewValidationError("gstin", fmt.Sprintf("malformed GSTIN %q", s))
}

func ValidateEmail(s string) error {
	if s == "" || emailPattern.MatchString(s) {
		return nil
	}
	return NewValidationError("email", fmt.Sprintf("malformed email %q", s))
}

// Validate checks the postal code against the Indian PIN format when the
// country is India or unset.
func (a Address) Validate() error {
	if a.PostalCode == "" {
		return nil
	}
	country := strings.ToLower(strings.TrimSpace(a.Country))
	if (country == "" || country == "india" || country == "in") && !pinCodePattern.MatchString(a.PostalCode) {
		return NewValidationError("postalCode", fmt.Sprintf("malformed postal code %q", a.PostalCode))
	}
	return nil
}
