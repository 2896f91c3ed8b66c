package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestAdd(t *testing.T) {
	a := FromFloat(10.50, CAD)
	b := FromFloat(9.50, CAD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, CAD, sum.Currency)
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	a := FromFloat(10, CAD)
	b := FromFloat(10, currency.USD)

	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMulInt(t *testing.T) {
	price := FromFloat(9.99, CAD)

	got := price.MulInt(3)
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(29.97)))
}

func TestMulInt_NoFloatDrift(t *testing.T) {
	// 0.1 * 3 is the classic binary float trap; decimal math must be exact.
	price := FromFloat(0.10, CAD)

	got := price.MulInt(3)
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(0.30)), "got %s", got.Amount)
}

func TestEqual(t *testing.T) {
	assert.True(t, FromFloat(5, CAD).Equal(New(decimal.NewFromFloat(5.00), CAD)))
	assert.False(t, FromFloat(5, CAD).Equal(FromFloat(5, currency.USD)))
	assert.False(t, FromFloat(5, CAD).Equal(FromFloat(5.01, CAD)))
}

func TestString(t *testing.T) {
	assert.Equal(t, "12.50 CAD", FromFloat(12.5, CAD).String())
	assert.Equal(t, "0.00 CAD", Zero(CAD).String())
}

func TestSigns(t *testing.T) {
	assert.True(t, FromFloat(1, CAD).IsPositive())
	assert.False(t, Zero(CAD).IsPositive())
	assert.True(t, FromFloat(-1, CAD).IsNegative())
}
