package navigate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigator_Navigate(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		openErr error
		wantURL string
		wantOut string
	}{
		{
			name:    "relative path",
			target:  "/login",
			wantURL: "https://app.example.com/login",
			wantOut: "Opened https://app.example.com/login\n",
		},
		{
			name:    "absolute checkout url",
			target:  "https://checkout.stripe.com/c/pay/cs_test_1",
			wantURL: "https://checkout.stripe.com/c/pay/cs_test_1",
			wantOut: "Opened https://checkout.stripe.com/c/pay/cs_test_1\n",
		},
		{
			name:    "browser unavailable prints url",
			target:  "/campaigns",
			openErr: errors.New("no display"),
			wantURL: "https://app.example.com/campaigns",
			wantOut: "Open this URL in your browser: https://app.example.com/campaigns\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			n, err := New("https://app.example.com", &out)
			require.NoError(t, err)

			var opened string
			n.open = func(u string) error {
				opened = u
				return tt.openErr
			}

			require.NoError(t, n.Navigate(tt.target))
			assert.Equal(t, tt.wantURL, opened)
			assert.Equal(t, tt.wantOut, out.String())
		})
	}
}

func TestNew_InvalidBase(t *testing.T) {
	_, err := New("://bad", &bytes.Buffer{})
	assert.Error(t, err)
}
