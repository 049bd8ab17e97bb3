package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("stripe unavailable")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("stripe unavailable"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestOp(t *testing.T) {
	attr := sl.Op("handlers.checkout.create")

	assert.Equal(t, "op", attr.Key)
	assert.Equal(t, "handlers.checkout.create", attr.Value.String())
}
