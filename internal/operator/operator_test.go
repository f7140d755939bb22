package operator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/i18n"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	args := m.Called(to, what, opts)
	msg, _ := args.Get(0).(*telebot.Message)
	return msg, args.Error(1)
}

func samplePayment() domain.PaymentRequest {
	return domain.PaymentRequest{
		ID:            "p-1",
		UserID:        "user-1",
		UserName:      "مريم",
		UserPhone:     "07712345678",
		PlanName:      "الباقة الشهرية",
		Amount:        15000,
		WalletType:    domain.WalletZainCash,
		TransactionID: "TX 55&1",
	}
}

func TestWhatsAppLink(t *testing.T) {
	message := TransferMessage(i18n.MustDefault(), samplePayment())
	link := WhatsAppLink("+9647704382836", message)

	parsed, err := url.Parse(link)
	require.NoError(t, err)

	assert.Equal(t, "wa.me", parsed.Host)
	assert.Equal(t, "/9647704382836", parsed.Path)
	assert.NotContains(t, parsed.RawQuery, "+")
	assert.Equal(t, message, parsed.Query().Get("text"))
	assert.Contains(t, message, "15,000")
	assert.Contains(t, message, "ZainCash")
	assert.Contains(t, message, "TX 55&1")
}

func TestTelegramNotifier_PaymentSubmitted(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", telebot.ChatID(99), mock.MatchedBy(func(text interface{}) bool {
		s, ok := text.(string)
		return ok && len(s) > 0
	}), mock.MatchedBy(func(opts []interface{}) bool {
		if len(opts) != 1 {
			return false
		}
		markup, ok := opts[0].(*telebot.ReplyMarkup)
		return ok && markup.InlineKeyboard[0][0].Data == "confirm:p-1"
	})).Return(&telebot.Message{}, nil).Once()

	n := NewTelegramNotifier(sender, 99, nil, testLogger())
	require.NoError(t, n.PaymentSubmitted(context.Background(), samplePayment()))

	sender.AssertExpectations(t)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return((*telebot.Message)(nil), errors.New("telegram down")).Once()

	n := NewTelegramNotifier(sender, 99, nil, testLogger())
	err := n.PaymentSubmitted(context.Background(), samplePayment())

	assert.Error(t, err)
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_Disabled(t *testing.T) {
	sender := &mockSender{}

	n := NewTelegramNotifier(sender, 0, nil, testLogger())
	assert.NoError(t, n.PaymentSubmitted(context.Background(), samplePayment()))

	var nilNotifier *TelegramNotifier
	assert.NoError(t, nilNotifier.PaymentSubmitted(context.Background(), samplePayment()))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(testLogger()).PaymentSubmitted(context.Background(), samplePayment()))
}
