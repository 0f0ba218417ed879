// Package billing starts hosted Stripe checkout sessions for paid plans.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/raysh454/clarity/internal/logging"
)

// Plan is a pricing tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPersonal   Plan = "personal"
	PlanEnterprise Plan = "enterprise"
)

// FreePlanURL is where the free plan "checkout" lands.
const FreePlanURL = "/scan"

var (
	ErrInvalidPlan   = errors.New("invalid plan")
	ErrNotConfigured = errors.New("billing is not configured")
)

// Config holds Stripe credentials and the public site origin used for the
// redirect URLs.
type Config struct {
	SecretKey       string `mapstructure:"secret_key"`
	PricePersonal   string `mapstructure:"price_personal"`
	PriceEnterprise string `mapstructure:"price_enterprise"`
	PublicDomain    string `mapstructure:"public_domain"`
}

// SessionCreator creates a Stripe checkout session.
type SessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// Checkout maps plans to Stripe prices and creates subscription sessions.
type Checkout struct {
	cfg    Config
	create SessionCreator
	logger logging.Logger
}

// NewCheckout returns a Checkout using the Stripe API. create may be nil.
func NewCheckout(cfg Config, create SessionCreator, logger logging.Logger) *Checkout {
	if create == nil {
		sc := &stripesession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: strings.TrimSpace(cfg.SecretKey)}
		create = sc.New
	}
	return &Checkout{
		cfg:    cfg,
		create: create,
		logger: logger.With(logging.Field{Key: "component", Value: "billing"}),
	}
}

// PriceFor returns the configured price ID for a paid plan.
func (c *Checkout) PriceFor(plan Plan) (string, bool) {
	var price string
	switch plan {
	case PlanPersonal:
		price = c.cfg.PricePersonal
	case PlanEnterprise:
		price = c.cfg.PriceEnterprise
	}
	price = strings.TrimSpace(price)
	return price, price != ""
}

// CreateSession returns the URL the customer should be sent to. The free
// plan needs no payment and returns FreePlanURL.
func (c *Checkout) CreateSession(ctx context.Context, plan string, email string) (string, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(plan)))
	if p == PlanFree {
		return FreePlanURL, nil
	}

	price, ok := c.PriceFor(p)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
	if strings.TrimSpace(c.cfg.SecretKey) == "" {
		return "", ErrNotConfigured
	}

	domain := strings.TrimRight(c.cfg.PublicDomain, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(domain + "/scan?status=success"),
		CancelURL:          stripe.String(domain + "/pricing?status=cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price),
				Quantity: stripe.Int64(1),
			},
		},
	}
	if email = strings.TrimSpace(email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx

	session, err := c.create(params)
	if err != nil {
		c.logger.Error("checkout session creation failed",
			logging.Field{Key: "plan", Value: string(p)},
			logging.Err(err))
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || session.URL == "" {
		return "", errors.New("create checkout session: empty session url")
	}

	c.logger.Info("checkout session created",
		logging.Field{Key: "plan", Value: string(p)},
		logging.Field{Key: "session_id", Value: session.ID})
	return session.URL, nil
}
