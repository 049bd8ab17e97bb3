package paymentprovider

// CheckoutSessionRequest — запрос на создание hosted checkout-сессии.
type CheckoutSessionRequest struct {
	ProductName   string
	Description   string
	UnitAmount    int64  // Сумма в центах
	Currency      string // Например "usd"
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string // Кладётся и в сессию, и в payment intent
}

// CheckoutSession — созданная сессия провайдера.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
