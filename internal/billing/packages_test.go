package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		wantCredits int
		wantPrice   string
		wantErr     error
	}{
		{name: "recommended package", id: "1000credits", wantCredits: 1000, wantPrice: "850"},
		{name: "smallest package", id: "100credits", wantCredits: 100, wantPrice: "99"},
		{name: "unknown package", id: "999credits", wantErr: ErrUnknownPackage},
		{name: "empty id", id: "", wantErr: ErrUnknownPackage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lookup(tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCredits, p.Credits)
			assert.True(t, p.Price.Equal(decimal.RequireFromString(tt.wantPrice)))
		})
	}
}

func TestPackage_UnitAmountAndPerCredit(t *testing.T) {
	p, err := Lookup("1000credits")
	require.NoError(t, err)

	assert.Equal(t, int64(85000), p.UnitAmount())
	assert.Equal(t, "0.85", p.PerCreditPrice().String())
	assert.Equal(t, "1000 Credits", p.Name())
	assert.True(t, p.Recommended)
	assert.Equal(t, 15, p.DiscountPercent)
}

func TestAll_SortedByCredits(t *testing.T) {
	all := All()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Credits, all[i].Credits)
	}
}
