package notify

import (
	"context"
	"io"
	"testing"
	"time"

	"slotnik/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type captureSender struct {
	sent []tgbotapi.MessageConfig
}

func (c *captureSender) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := msg.(tgbotapi.MessageConfig); ok {
		c.sent = append(c.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func newTestNotifier(sender *captureSender) *TelegramNotifier {
	logger := zerolog.New(io.Discard)
	return NewTelegramNotifier(sender, 42, time.UTC, &logger)
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:       "b-1",
		TimeSlot: time.Date(2023, 12, 25, 10, 30, 0, 0, time.UTC).UnixMilli(),
		UserID:   "u-1",
		Services: []string{"cut", "color"},
		UserSnapshot: models.UserSnapshot{
			DisplayName: "Chris",
			Phone:       "0912345678",
		},
	}
}

func TestBookingCreated_MessageContent(t *testing.T) {
	sender := &captureSender{}
	n := newTestNotifier(sender)

	assert.NoError(t, n.BookingCreated(context.Background(), testBooking()))
	assert.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "25.12.2023 10:30")
	assert.Contains(t, msg.Text, "Chris")
	assert.Contains(t, msg.Text, "cut, color")
}

func TestBookingCancelled_NamesActor(t *testing.T) {
	sender := &captureSender{}
	n := newTestNotifier(sender)

	assert.NoError(t, n.BookingCancelled(context.Background(), testBooking(), models.CanceledByAdmin))
	assert.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "администратором")

	assert.NoError(t, n.BookingCancelled(context.Background(), testBooking(), models.CanceledByUser))
	assert.Contains(t, sender.sent[1].Text, "клиентом")
}

func TestNotifier_NilBotIsNoop(t *testing.T) {
	logger := zerolog.New(io.Discard)
	n := NewTelegramNotifier(nil, 0, time.UTC, &logger)

	assert.NoError(t, n.BookingCreated(context.Background(), testBooking()))
}

func TestNotifier_MissingPhoneRendersPlaceholder(t *testing.T) {
	sender := &captureSender{}
	n := newTestNotifier(sender)

	b := testBooking()
	b.UserSnapshot.Phone = ""
	assert.NoError(t, n.BookingCreated(context.Background(), b))
	assert.Contains(t, sender.sent[0].Text, "Телефон: —")
}
