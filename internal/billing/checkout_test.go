package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/raysh454/clarity/internal/logging"
)

var testConfig = Config{
	SecretKey:       "sk_test_123",
	PricePersonal:   "price_personal",
	PriceEnterprise: "price_enterprise",
	PublicDomain:    "https://clarity.example/",
}

func TestCreateSession_FreePlanSkipsStripe(t *testing.T) {
	t.Parallel()
	called := false
	c := NewCheckout(testConfig, func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		called = true
		return nil, nil
	}, logging.NewNopLogger())

	url, err := c.CreateSession(context.Background(), "free", "")
	require.NoError(t, err)
	assert.Equal(t, "/scan", url)
	assert.False(t, called)
}

func TestCreateSession_BuildsSubscriptionParams(t *testing.T) {
	t.Parallel()
	var got *stripe.CheckoutSessionParams
	c := NewCheckout(testConfig, func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil
	}, logging.NewNopLogger())

	url, err := c.CreateSession(context.Background(), "Enterprise", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", url)

	require.NotNil(t, got)
	assert.Equal(t, "subscription", *got.Mode)
	assert.Equal(t, []*string{stripe.String("card")}, got.PaymentMethodTypes)
	assert.Equal(t, "https://clarity.example/scan?status=success", *got.SuccessURL)
	assert.Equal(t, "https://clarity.example/pricing?status=cancelled", *got.CancelURL)
	assert.Equal(t, "ada@example.com", *got.CustomerEmail)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "price_enterprise", *got.LineItems[0].Price)
	assert.Equal(t, int64(1), *got.LineItems[0].Quantity)
}

func TestCreateSession_InvalidPlan(t *testing.T) {
	t.Parallel()
	cfg := testConfig
	cfg.PriceEnterprise = ""
	c := NewCheckout(cfg, func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		t.Fatal("stripe must not be called")
		return nil, nil
	}, logging.NewNopLogger())

	for _, plan := range []string{"gold", "", "enterprise"} {
		_, err := c.CreateSession(context.Background(), plan, "")
		assert.ErrorIs(t, err, ErrInvalidPlan, plan)
	}
}

func TestCreateSession_ProviderErrors(t *testing.T) {
	t.Parallel()

	noKey := testConfig
	noKey.SecretKey = ""
	_, err := NewCheckout(noKey, nil, logging.NewNopLogger()).CreateSession(context.Background(), "personal", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	boom := errors.New("card_declined")
	c := NewCheckout(testConfig, func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, boom
	}, logging.NewNopLogger())
	_, err = c.CreateSession(context.Background(), "personal", "")
	assert.ErrorIs(t, err, boom)

	empty := NewCheckout(testConfig, func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{}, nil
	}, logging.NewNopLogger())
	_, err = empty.CreateSession(context.Background(), "personal", "")
	assert.Error(t, err)
}
