package paymentprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSessionParams(t *testing.T) {
	req := CheckoutSessionRequest{
		ProductName:   "1000 Credits",
		Description:   "Influencer campaign credits",
		UnitAmount:    85000,
		Currency:      "usd",
		CustomerEmail: "owner@brand.io",
		SuccessURL:    "https://app/credits?success=true",
		CancelURL:     "https://app/credits?canceled=true",
		Metadata: map[string]string{
			"userId":  "u1",
			"credits": "1000",
			"source":  "web",
		},
	}

	params := buildSessionParams(req)

	require.Len(t, params.LineItems, 1)
	item := params.LineItems[0]
	assert.Equal(t, int64(85000), *item.PriceData.UnitAmount)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, "1000 Credits", *item.PriceData.ProductData.Name)
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "owner@brand.io", *params.CustomerEmail)
	assert.Equal(t, "https://app/credits?success=true", *params.SuccessURL)
	assert.Equal(t, "https://app/credits?canceled=true", *params.CancelURL)

	assert.Equal(t, "1000", params.Metadata["credits"])
	assert.Equal(t, "web", params.PaymentIntentData.Metadata["source"])

	req.Metadata["userId"] = "changed"
	assert.Equal(t, "u1", params.PaymentIntentData.Metadata["userId"], "payment intent metadata is a copy")
}

func TestBuildSessionParams_WithoutOptionalFields(t *testing.T) {
	params := buildSessionParams(CheckoutSessionRequest{
		ProductName: "100 Credits",
		UnitAmount:  9900,
		Currency:    "usd",
	})

	assert.Nil(t, params.CustomerEmail)
	assert.Nil(t, params.LineItems[0].PriceData.ProductData.Description)
	assert.Empty(t, params.PaymentIntentData.Metadata)
}
