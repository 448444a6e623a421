package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/stockwarden/internal/domain"
)

type sample struct {
	Email    string  `validate:"required,email"`
	Password string  `validate:"required,min=8"`
	Price    float64 `validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Email: "a@b.co", Password: "longenough", Price: 1}))

	err := Struct(sample{Email: "nope", Password: "short", Price: -1})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "email must be a valid email address")
	assert.Contains(t, err.Error(), "password must be at least 8")
	assert.Contains(t, err.Error(), "price must be >= 0")
}
