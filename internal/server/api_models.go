package server

// SubscribeRequest registers an email address.
type SubscribeRequest struct {
	Email string `json:"email" example:"ada@example.com"`
}

// SubscribeResponse echoes the stored subscriber.
type SubscribeResponse struct {
	Email     string `json:"email" example:"ada@example.com"`
	CreatedAt string `json:"created_at" example:"2026-10-15T09:30:00Z"`
}

// CheckoutRequest selects a pricing plan.
type CheckoutRequest struct {
	Email string `json:"email,omitempty" example:"ada@example.com"`
	Plan  string `json:"plan" example:"personal" enums:"free,personal,enterprise"`
}

// CheckoutResponse carries the URL the browser should follow.
type CheckoutResponse struct {
	URL string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_123"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Strategy string `json:"strategy" example:"local"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"Provide ?url=https://…"`
}
