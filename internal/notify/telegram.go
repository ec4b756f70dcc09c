package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slotnik/internal/domain"
	"slotnik/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TelegramNotifier pushes booking events to the shop's admin chat. Sends are
// rate limited so a burst of bookings does not trip the bot API flood control.
type TelegramNotifier struct {
	bot         domain.TelegramSender
	adminChatID int64
	location    *time.Location
	limiter     *rate.Limiter
	logger      *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, adminChatID int64, loc *time.Location, logger *zerolog.Logger) *TelegramNotifier {
	if loc == nil {
		loc = time.Local
	}
	return &TelegramNotifier{
		bot:         bot,
		adminChatID: adminChatID,
		location:    loc,
		// Телеграм режет ~30 сообщений в секунду, держимся сильно ниже
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:  logger,
	}
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	if n.bot == nil || n.adminChatID == 0 {
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.adminChatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Msg("failed to send admin notification")
		return err
	}
	return nil
}

func (n *TelegramNotifier) BookingCreated(ctx context.Context, booking *models.Booking) error {
	slot := booking.SlotTime(n.location)
	text := fmt.Sprintf(
		"📅 Новая запись\n%s\nКлиент: %s\nТелефон: %s\nУслуги: %s",
		slot.Format("02.01.2006 15:04"),
		booking.UserSnapshot.DisplayName,
		orDash(booking.UserSnapshot.Phone),
		orDash(strings.Join(booking.Services, ", ")),
	)
	return n.send(ctx, text)
}

func (n *TelegramNotifier) BookingCancelled(ctx context.Context, booking *models.Booking, by string) error {
	slot := booking.SlotTime(n.location)
	who := "клиентом"
	if by == models.CanceledByAdmin {
		who = "администратором"
	}
	text := fmt.Sprintf(
		"❌ Запись отменена %s\n%s\nКлиент: %s",
		who,
		slot.Format("02.01.2006 15:04"),
		booking.UserSnapshot.DisplayName,
	)
	return n.send(ctx, text)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
