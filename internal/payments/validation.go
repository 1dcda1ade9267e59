package payments

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
)

// Field names reported by DetailsError.
const (
	FieldCardNumber = "cardNumber"
	FieldExpiry     = "expiryDate"
	FieldCVV        = "cvv"
	FieldUPIID      = "upiId"
)

// ErrInvalidDetails is matched by every DetailsError.
var ErrInvalidDetails = errors.New("payments: invalid payment details")

// DetailsError reports a payment field that failed format validation.
type DetailsError struct {
	Field  string
	Reason string
}

func (e *DetailsError) Error() string {
	if e == nil {
		return ErrInvalidDetails.Error()
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDetails.Error(), e.Field, e.Reason)
}

// Is matches ErrInvalidDetails.
func (e *DetailsError) Is(target error) bool {
	return target == ErrInvalidDetails
}

func invalidDetails(field, reason string) error {
	return &DetailsError{Field: field, Reason: reason}
}

const cardNumberLength = 16

var (
	cvvPattern   = regexp.MustCompile(`^\d{3,4}$`)
	upiPattern   = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z]{3,}$`)
	digitsFilter = regexp.MustCompile(`\D`)
)

// NormalizeCardNumber strips every non-digit character.
func NormalizeCardNumber(number string) string {
	return digitsFilter.ReplaceAllString(number, "")
}

// LuhnValid reports whether the digit string passes the Luhn checksum.
func LuhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		ch := digits[i]
		if ch < '0' || ch > '9' {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// ValidateCard checks number, expiry and CVV in that order and returns the
// first failing field.
func ValidateCard(card CardInput, now time.Time) error {
	digits := NormalizeCardNumber(card.Number)
	if len(digits) != cardNumberLength {
		return invalidDetails(FieldCardNumber, "card number must contain 16 digits")
	}
	if !LuhnValid(digits) {
		return invalidDetails(FieldCardNumber, "card number failed checksum")
	}
	if err := ValidateExpiry(card.Expiry, now); err != nil {
		return err
	}
	if !cvvPattern.MatchString(strings.TrimSpace(card.CVV)) {
		return invalidDetails(FieldCVV, "cvv must be 3 or 4 digits")
	}
	return nil
}

// ValidateExpiry accepts MM/YY with month 1-12, not earlier than the month of now.
func ValidateExpiry(expiry string, now time.Time) error {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 {
		return invalidDetails(FieldExpiry, "expiry must be MM/YY")
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return invalidDetails(FieldExpiry, "expiry month is not a number")
	}
	yearPart := strings.TrimSpace(parts[1])
	if len(yearPart) != 2 {
		return invalidDetails(FieldExpiry, "expiry year must have two digits")
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return invalidDetails(FieldExpiry, "expiry year is not a number")
	}
	if month < 1 || month > 12 {
		return invalidDetails(FieldExpiry, "expiry month must be between 1 and 12")
	}
	currentYear := now.Year() % 100
	currentMonth := int(now.Month())
	if year < currentYear || (year == currentYear && month < currentMonth) {
		return invalidDetails(FieldExpiry, "card has expired")
	}
	return nil
}

// ValidateUPI checks the local@handle form with an alphabetic handle of at least three letters.
func ValidateUPI(id string) error {
	if !upiPattern.MatchString(strings.TrimSpace(id)) {
		return invalidDetails(FieldUPIID, "upi id must look like name@bank")
	}
	return nil
}

// ValidateRequest runs the format checks for the branch selected by req.Method.
func ValidateRequest(req VerifyRequest, now time.Time) error {
	switch req.Method {
	case MethodCard:
		if req.Card == nil {
			return invalidDetails(FieldCardNumber, "card details are required")
		}
		return ValidateCard(*req.Card, now)
	case MethodUPI:
		return ValidateUPI(req.UPIID)
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidDetails, req.Method)
	}
}

// CardBrand infers the network from the leading digits of a card number.
func CardBrand(number string) stripe.PaymentMethodCardBrand {
	digits := NormalizeCardNumber(number)
	switch {
	case strings.HasPrefix(digits, "4"):
		return stripe.PaymentMethodCardBrandVisa
	case hasPrefixRange(digits, 2, 51, 55), hasPrefixRange(digits, 4, 2221, 2720):
		return stripe.PaymentMethodCardBrandMastercard
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return stripe.PaymentMethodCardBrandAmex
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return stripe.PaymentMethodCardBrandDiscover
	case hasPrefixRange(digits, 4, 3528, 3589):
		return stripe.PaymentMethodCardBrandJCB
	default:
		return stripe.PaymentMethodCardBrandUnknown
	}
}

// Last4 returns the trailing four digits of a card number.
func Last4(number string) string {
	digits := NormalizeCardNumber(number)
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// UPIHandle returns the provider handle of a UPI id (the part after @).
func UPIHandle(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.LastIndex(id, "@"); idx >= 0 {
		return strings.ToLower(id[idx+1:])
	}
	return ""
}

func hasPrefixRange(digits string, width, low, high int) bool {
	if len(digits) < width {
		return false
	}
	prefix, err := strconv.Atoi(digits[:width])
	if err != nil {
		return false
	}
	return prefix >= low && prefix <= high
}
