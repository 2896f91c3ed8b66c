package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smalob/marketplace/internal/domain/money"
	"github.com/smalob/marketplace/internal/domain/payment"
)

func chargeReq(key, token string) payment.ChargeRequest {
	return payment.ChargeRequest{
		Amount:         money.FromFloat(20, money.CAD),
		SourceToken:    token,
		IdempotencyKey: key,
	}
}

func TestCharge_Captures(t *testing.T) {
	g := New(nil, nil)

	receipt, err := g.Charge(context.Background(), chargeReq("key-1", "tok-ok"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TransactionID)
	assert.True(t, receipt.Amount.Equal(money.FromFloat(20, money.CAD)))
	assert.False(t, receipt.CapturedAt.IsZero())
	assert.Equal(t, 1, g.Captures())
}

func TestCharge_IdempotentReplay(t *testing.T) {
	g := New(nil, nil)
	ctx := context.Background()

	first, err := g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	require.NoError(t, err)

	second, err := g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, 1, g.Captures(), "a replayed key must not capture twice")
}

func TestCharge_DistinctKeysCaptureSeparately(t *testing.T) {
	g := New(nil, nil)
	ctx := context.Background()

	first, err := g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	require.NoError(t, err)
	second, err := g.Charge(ctx, chargeReq("key-2", "tok-ok"))
	require.NoError(t, err)

	assert.NotEqual(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, 2, g.Captures())
}

func TestCharge_Declined(t *testing.T) {
	g := New(nil, nil)
	ctx := context.Background()

	_, err := g.Charge(ctx, chargeReq("key-1", TokenDeclined))
	require.ErrorIs(t, err, payment.ErrCardDeclined)
	assert.False(t, payment.Retryable(err))

	// A decline is terminal for its key and replays as a decline.
	_, err = g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	assert.ErrorIs(t, err, payment.ErrCardDeclined)
}

func TestCharge_Unavailable_NotCached(t *testing.T) {
	g := New(nil, nil)
	ctx := context.Background()

	_, err := g.Charge(ctx, chargeReq("key-1", TokenUnavailable))
	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	assert.True(t, payment.Retryable(err))

	// Transient failure is not a terminal outcome: the same key can still
	// settle exactly once.
	receipt, err := g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TransactionID)
}

func TestCharge_Validation(t *testing.T) {
	g := New(nil, nil)
	ctx := context.Background()

	_, err := g.Charge(ctx, chargeReq("", "tok-ok"))
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = g.Charge(ctx, chargeReq("key-1", ""))
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	req := chargeReq("key-1", "tok-ok")
	req.Amount = money.Zero(money.CAD)
	_, err = g.Charge(ctx, req)
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)
}

func TestRefund(t *testing.T) {
	g := New(nil, nil)
	ctx := context.Background()

	receipt, err := g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	require.NoError(t, err)

	require.NoError(t, g.Refund(ctx, receipt.TransactionID))

	assert.ErrorIs(t, g.Refund(ctx, "txn-unknown"), payment.ErrInvalidRequest)
	assert.ErrorIs(t, g.Refund(ctx, ""), payment.ErrInvalidRequest)
}

func TestCharge_ContextCancelled(t *testing.T) {
	g := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, chargeReq("key-1", "tok-ok"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, g.Captures())
}
