package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hanko-field/storefront/internal/di"
	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
	"github.com/hanko-field/storefront/internal/services"
)

//go:embed scenario.yaml
var defaultScenario []byte

const expectOK = "ok"

var knownActions = map[string]struct{}{
	"browse":          {},
	"login":           {},
	"logout":          {},
	"add":             {},
	"update":          {},
	"remove":          {},
	"clear":           {},
	"wishlist_add":    {},
	"wishlist_remove": {},
	"checkout":        {},
	"reset_checkout":  {},
	"orders":          {},
}

// Scenario is a scripted shopper session.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one shopper action. Expect names the error kind the step should end
// with, or "ok".
type Step struct {
	Action   string        `yaml:"action"`
	Email    string        `yaml:"email"`
	Password string        `yaml:"password"`
	Product  string        `yaml:"product"`
	Size     string        `yaml:"size"`
	Quantity int           `yaml:"quantity"`
	Query    string        `yaml:"query"`
	Category string        `yaml:"category"`
	Sort     string        `yaml:"sort"`
	Shipping *ShippingStep `yaml:"shipping"`
	Payment  *PaymentStep  `yaml:"payment"`
	Expect   string        `yaml:"expect"`
}

// ShippingStep mirrors the checkout shipping fields.
type ShippingStep struct {
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Email     string `yaml:"email"`
	Phone     string `yaml:"phone"`
	Address   string `yaml:"address"`
	City      string `yaml:"city"`
	State     string `yaml:"state"`
	ZipCode   string `yaml:"zipCode"`
}

// PaymentStep carries either card or UPI details.
type PaymentStep struct {
	Method string `yaml:"method"`
	Number string `yaml:"number"`
	Expiry string `yaml:"expiry"`
	CVV    string `yaml:"cvv"`
	UPI    string `yaml:"upi"`
}

// StepResult records how a step ended.
type StepResult struct {
	Index   int
	Action  string
	Outcome string
	Detail  string
	Passed  bool
}

// LoadScenario decodes a scenario file. An empty path loads the bundled scenario.
func LoadScenario(path string) (Scenario, error) {
	var r io.Reader
	if strings.TrimSpace(path) == "" {
		r = bytes.NewReader(defaultScenario)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return Scenario{}, fmt.Errorf("scenario: open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return DecodeScenario(r)
}

// DecodeScenario parses and checks a scenario document.
func DecodeScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("scenario: decode: %w", err)
	}
	if len(sc.Steps) == 0 {
		return Scenario{}, errors.New("scenario: no steps")
	}
	for i := range sc.Steps {
		step := &sc.Steps[i]
		step.Action = strings.ToLower(strings.TrimSpace(step.Action))
		if _, ok := knownActions[step.Action]; !ok {
			return Scenario{}, fmt.Errorf("scenario: step %d: unknown action %q", i+1, step.Action)
		}
		step.Expect = strings.ToLower(strings.TrimSpace(step.Expect))
		if step.Expect == "" {
			step.Expect = expectOK
		}
	}
	return sc, nil
}

// Runner replays scenarios against a wired container.
type Runner struct {
	services di.Services
	currency string
	locale   string
	out      io.Writer
	logger   *zap.Logger
}

// NewRunner builds a runner writing its report to out.
func NewRunner(container *di.Container, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	logger := container.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		services: container.Services,
		currency: container.Config.App.Currency,
		locale:   container.Config.App.Locale,
		out:      out,
		logger:   logger,
	}
}

// Run executes every step in order and reports whether each ended as expected.
func (r *Runner) Run(ctx context.Context, sc Scenario) ([]StepResult, error) {
	fmt.Fprintf(r.out, "scenario: %s\n", sc.Name)
	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		stepCtx := requestctx.WithOperation(ctx, requestctx.Operation{ID: ulid.Make().String(), Name: step.Action})
		stepCtx = requestctx.WithLogger(stepCtx, r.logger)

		detail, err := r.apply(stepCtx, step)
		outcome := outcomeOf(err)
		result := StepResult{
			Index:   i + 1,
			Action:  step.Action,
			Outcome: outcome,
			Detail:  detail,
			Passed:  outcome == step.Expect,
		}
		if err != nil {
			result.Detail = err.Error()
		}
		results = append(results, result)

		mark := "ok"
		if !result.Passed {
			mark = "FAIL"
			r.logger.Warn("scenario step ended unexpectedly",
				zap.Int("step", result.Index),
				zap.String("action", step.Action),
				zap.String("expected", step.Expect),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
		}
		fmt.Fprintf(r.out, "%3d %-4s %-16s %-18s %s\n", result.Index, mark, step.Action, outcome, result.Detail)
	}
	return results, nil
}

func (r *Runner) apply(ctx context.Context, step Step) (string, error) {
	svc := r.services
	switch step.Action {
	case "browse":
		filter := domain.ProductFilter{Query: step.Query, Sort: domain.ProductSort(step.Sort)}
		if step.Category != "" {
			filter.Categories = []string{step.Category}
		}
		products, err := svc.Catalog.ListProducts(ctx, filter)
		if err != nil {
			return "", err
		}
		ids := make([]string, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		return fmt.Sprintf("%d products [%s]", len(products), strings.Join(ids, " ")), nil
	case "login":
		user, err := svc.Session.Login(ctx, step.Email, step.Password, nil)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("signed in as %s %s", user.FirstName, user.LastName), nil
	case "logout":
		svc.Session.Logout()
		return "signed out", nil
	case "add":
		product, err := svc.Catalog.GetProduct(ctx, step.Product)
		if err != nil {
			return "", err
		}
		cart, err := svc.Cart.AddItem(ctx, product, step.Size, step.Quantity)
		return r.cartSummary(cart), err
	case "update":
		cart, err := svc.Cart.UpdateQuantity(ctx, step.Product, step.Size, step.Quantity)
		return r.cartSummary(cart), err
	case "remove":
		cart, err := svc.Cart.RemoveItem(ctx, step.Product, step.Size)
		return r.cartSummary(cart), err
	case "clear":
		cart, err := svc.Cart.Clear(ctx)
		return r.cartSummary(cart), err
	case "wishlist_add":
		product, err := svc.Catalog.GetProduct(ctx, step.Product)
		if err != nil {
			return "", err
		}
		wishlist, err := svc.Wishlist.Add(ctx, product)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("wishlist holds %d", len(wishlist.Items)), nil
	case "wishlist_remove":
		wishlist, err := svc.Wishlist.Remove(ctx, step.Product)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("wishlist holds %d", len(wishlist.Items)), nil
	case "checkout":
		conf, err := svc.Checkout.Submit(ctx, checkoutForm(step))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("order %s %s, confirmation to %s",
			conf.Order.ID, domain.FormatMoney(conf.Order.Total, conf.Order.Currency, r.locale), conf.ContactEmail), nil
	case "reset_checkout":
		if err := svc.Checkout.Reset(); err != nil {
			return "", err
		}
		return string(svc.Checkout.State()), nil
	case "orders":
		orders, err := svc.Orders.ListOrders(ctx)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(orders))
		for _, o := range orders {
			parts = append(parts, fmt.Sprintf("%s=%s", o.ID, domain.FormatMoney(o.Total, o.Currency, r.locale)))
		}
		return fmt.Sprintf("%d orders %s", len(orders), strings.Join(parts, " ")), nil
	}
	return "", fmt.Errorf("unknown action %q", step.Action)
}

func (r *Runner) cartSummary(cart services.Cart) string {
	return fmt.Sprintf("%d items, %s", cart.ItemCount, domain.FormatMoney(cart.Total, r.currency, r.locale))
}

func checkoutForm(step Step) services.CheckoutForm {
	var form services.CheckoutForm
	if s := step.Shipping; s != nil {
		form.Shipping = services.ShippingDetails{
			FirstName: s.FirstName,
			LastName:  s.LastName,
			Email:     s.Email,
			Phone:     s.Phone,
			Address:   s.Address,
			City:      s.City,
			State:     s.State,
			ZipCode:   s.ZipCode,
		}
	}
	if p := step.Payment; p != nil {
		form.PaymentMethod = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(p.Method)))
		switch form.PaymentMethod {
		case domain.PaymentMethodCard:
			form.Card = &domain.CardDetails{Number: p.Number, Expiry: p.Expiry, CVV: p.CVV}
		case domain.PaymentMethodUPI:
			form.UPI = &domain.UPIDetails{ID: p.UPI}
		}
	}
	return form
}

// outcomeOf names the error kind a step ended with.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return expectOK
	case errors.Is(err, services.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, services.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, services.ErrCartItemNotFound):
		return "item_not_found"
	case errors.Is(err, services.ErrInvalidPaymentDetails):
		return "invalid_payment"
	case errors.Is(err, services.ErrPaymentDeclined):
		return "declined"
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		return "cart_empty"
	case errors.Is(err, services.ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, services.ErrCheckoutCompleted):
		return "completed"
	case errors.Is(err, services.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, services.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, services.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, services.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	case errors.Is(err, services.ErrStorageUnavailable), errors.Is(err, services.ErrStorageCorrupt):
		return "storage"
	case errors.Is(err, services.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// failures counts steps that did not end as expected.
func failures(results []StepResult) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
