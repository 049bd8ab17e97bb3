// Package paymentprovider оборачивает Stripe Checkout: создание hosted
// checkout-сессии для покупки пакета кредитов.
package paymentprovider

import (
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// Client — клиент Stripe с секретным ключом аккаунта.
type Client struct {
	api *client.API
}

// NewClient создаёт новый клиент Stripe.
func NewClient(secretKey string) *Client {
	return &Client{api: client.New(secretKey, nil)}
}

// CreateCheckoutSession создаёт сессию оплаты одной позиции.
func (c *Client) CreateCheckoutSession(req CheckoutSessionRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	s, err := c.api.CheckoutSessions.New(buildSessionParams(req))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func buildSessionParams(req CheckoutSessionRequest) *stripe.CheckoutSessionParams {
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		productData.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					ProductData: productData,
					UnitAmount:  stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(req.Metadata),
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func copyMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
