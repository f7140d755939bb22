package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlan(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "by id", input: PlanYearly, expected: PlanYearly},
		{name: "by display name", input: "الباقة الربع سنوية", expected: PlanQuarterly},
		{name: "unknown falls back to monthly", input: "lifetime", expected: PlanMonthly},
		{name: "empty falls back to monthly", input: "", expected: PlanMonthly},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolvePlan(tc.input).ID)
		})
	}
}

func TestWalletType_Valid(t *testing.T) {
	assert.True(t, WalletZainCash.Valid())
	assert.True(t, WalletQiCard.Valid())
	assert.False(t, WalletType("PayPal").Valid())
	assert.False(t, WalletType("").Valid())
}

func TestUser_CloneIsDeep(t *testing.T) {
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	u := &User{ID: "user-1", SubscriptionEndDate: &end}

	c := u.Clone()
	*c.SubscriptionEndDate = end.Add(24 * time.Hour)

	assert.Equal(t, end, *u.SubscriptionEndDate)
	assert.Nil(t, (*User)(nil).Clone())
}

func TestGuestUser(t *testing.T) {
	now := time.Now()
	g := GuestUser(now)

	assert.Equal(t, GuestID, g.ID)
	assert.Equal(t, RoleVisitor, g.Role)
	assert.True(t, g.IsGuest)
	assert.False(t, g.IsAdmin())
}

func TestPaymentRequest_StoredFormat(t *testing.T) {
	stored := `{
		"id": "pay-1",
		"userId": "user-07701234567",
		"userName": "علي",
		"userPhone": "07701234567",
		"amount": 15000,
		"walletType": "ZainCash",
		"transactionId": "TX-1",
		"status": "REJECTED",
		"date": "2025-04-10T12:00:00.000Z",
		"planName": "الباقة الشهرية",
		"rejectReason": "المبلغ غير مطابق"
	}`

	var p PaymentRequest
	require.NoError(t, json.Unmarshal([]byte(stored), &p))
	assert.Equal(t, PaymentRejected, p.Status)
	assert.Equal(t, "المبلغ غير مطابق", p.RejectionReason)
	assert.Equal(t, time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC), p.Date.UTC())
	assert.Equal(t, int64(15000), p.Amount)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	assert.Equal(t, "المبلغ غير مطابق", fields["rejectReason"])
	assert.NotContains(t, fields, "rejectionReason")

	pending := PaymentRequest{ID: "pay-2", Status: PaymentPending}
	encoded, err = json.Marshal(pending)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "rejectReason")
}
