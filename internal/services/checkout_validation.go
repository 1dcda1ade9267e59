package services

import (
	"errors"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/payments"
)

var shippingTextPolicy = bluemonday.StrictPolicy()

// validateCheckoutForm runs the shipping and payment checks that gate submission.
// Missing fields yield ValidationError, malformed payment fields yield
// InvalidPaymentDetailsError.
func validateCheckoutForm(form CheckoutForm, now time.Time) error {
	shipping := form.Shipping
	required := []struct {
		field string
		value string
	}{
		{"firstName", shipping.FirstName},
		{"lastName", shipping.LastName},
		{"email", shipping.Email},
		{"phone", shipping.Phone},
		{"address", shipping.Address},
		{"city", shipping.City},
		{"state", shipping.State},
		{"zipCode", shipping.ZipCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalidField(r.field, "is required")
		}
	}

	switch form.PaymentMethod {
	case domain.PaymentMethodCard:
		if form.UPI != nil && strings.TrimSpace(form.UPI.ID) != "" {
			return invalidField(payments.FieldUPIID, "must be empty when paying by card")
		}
		if form.Card == nil {
			return invalidField(payments.FieldCardNumber, "is required")
		}
		for _, r := range []struct {
			field string
			value string
		}{
			{payments.FieldCardNumber, form.Card.Number},
			{payments.FieldExpiry, form.Card.Expiry},
			{payments.FieldCVV, form.Card.CVV},
		} {
			if strings.TrimSpace(r.value) == "" {
				return invalidField(r.field, "is required")
			}
		}
		return paymentDetailsError(payments.ValidateCard(cardInput(form.Card), now))

	case domain.PaymentMethodUPI:
		if form.Card != nil && (form.Card.Number != "" || form.Card.Expiry != "" || form.Card.CVV != "") {
			return invalidField(payments.FieldCardNumber, "must be empty when paying by UPI")
		}
		if form.UPI == nil || strings.TrimSpace(form.UPI.ID) == "" {
			return invalidField(payments.FieldUPIID, "is required")
		}
		return paymentDetailsError(payments.ValidateUPI(form.UPI.ID))

	default:
		return invalidField("paymentMethod", "must be card or upi")
	}
}

func paymentDetailsError(err error) error {
	if err == nil {
		return nil
	}
	var details *payments.DetailsError
	if errors.As(err, &details) {
		return &InvalidPaymentDetailsError{Field: details.Field, Reason: details.Reason}
	}
	return &InvalidPaymentDetailsError{Field: "paymentMethod", Reason: err.Error()}
}

func cardInput(card *domain.CardDetails) payments.CardInput {
	if card == nil {
		return payments.CardInput{}
	}
	return payments.CardInput{Number: card.Number, Expiry: card.Expiry, CVV: card.CVV}
}

// sanitizeText strips markup from free-text form input.
func sanitizeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(shippingTextPolicy.Sanitize(value)))
}

func sanitizeShipping(shipping ShippingDetails) ShippingDetails {
	return ShippingDetails{
		FirstName: sanitizeText(shipping.FirstName),
		LastName:  sanitizeText(shipping.LastName),
		Email:     sanitizeText(shipping.Email),
		Phone:     sanitizeText(shipping.Phone),
		Address:   sanitizeText(shipping.Address),
		City:      sanitizeText(shipping.City),
		State:     sanitizeText(shipping.State),
		ZipCode:   sanitizeText(shipping.ZipCode),
	}
}
