package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when configuration does not specify one.
const DefaultCurrency = "USD"

var errInvalidCurrency = errors.New("domain: invalid currency code")

// LineTotal returns price multiplied by quantity for a single cart line.
func LineTotal(item CartItem) int64 {
	return item.Product.Price * int64(item.Quantity)
}

// CartTotal recomputes the sum of line totals from scratch.
func CartTotal(items []CartItem) int64 {
	var total int64
	for _, item := range items {
		total += LineTotal(item)
	}
	return total
}

// ItemCount recomputes the number of units across all lines.
func ItemCount(items []CartItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// Recalculate returns the cart with Total and ItemCount derived from Items.
func Recalculate(cart Cart) Cart {
	cart.Total = CartTotal(cart.Items)
	cart.ItemCount = ItemCount(cart.Items)
	return cart
}

// MoneyFromMajor converts a decimal amount in major units (e.g. 225.50) into
// minor units for the currency, rounding half away from zero.
func MoneyFromMajor(amount float64, code string) (int64, error) {
	unit, err := parseCurrency(code)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, fmt.Errorf("domain: invalid amount %v", amount)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int64(math.Round(amount * math.Pow10(scale))), nil
}

// MoneyToMajor converts minor units back into a decimal major amount.
func MoneyToMajor(minor int64, code string) (float64, error) {
	unit, err := parseCurrency(code)
	if err != nil {
		return 0, err
	}
	scale, _ := currency.Standard.Rounding(unit)
	return float64(minor) / math.Pow10(scale), nil
}

// FormatMoney renders minor units using the currency symbol for the locale,
// e.g. FormatMoney(19500, "USD", "en") => "$ 195.00".
func FormatMoney(minor int64, code string, locale string) string {
	unit, err := parseCurrency(code)
	if err != nil {
		return fmt.Sprintf("%d", minor)
	}
	tag := language.English
	if trimmed := strings.TrimSpace(locale); trimmed != "" {
		if parsed, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-")); err == nil {
			tag = parsed
		}
	}
	major, _ := MoneyToMajor(minor, code)
	printer := message.NewPrinter(tag)
	return printer.Sprint(currency.Symbol(unit.Amount(major)))
}

func parseCurrency(code string) (currency.Unit, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("%w: %s", errInvalidCurrency, code)
	}
	return unit, nil
}
