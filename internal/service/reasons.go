package service

import (
	"errors"

	"slotnik/internal/database"
)

// failureReason labels a failed operation for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, database.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, database.ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, database.ErrUserBlocked):
		return "user_blocked"
	case errors.Is(err, database.ErrActiveBookingExists):
		return "active_booking_exists"
	case errors.Is(err, database.ErrBookingNotFound):
		return "booking_not_found"
	case errors.Is(err, database.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, database.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, database.ErrCutoffExceeded):
		return "cutoff_exceeded"
	case errors.Is(err, database.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, database.ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, database.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "other"
	}
}

// Reason maps an operation failure to user-facing text. The generic
// permission denial never reaches this point for cancellations, the
// orchestrator re-diagnoses it first.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, database.ErrSlotUnavailable):
		return "⚠️ Это время уже занято. Пожалуйста, выберите другой слот."
	case errors.Is(err, database.ErrInvalidSlot):
		return "⚠️ Выбранное время не входит в расписание салона."
	case errors.Is(err, database.ErrUserBlocked):
		return "⚠️ Запись недоступна. Пожалуйста, свяжитесь с администратором."
	case errors.Is(err, database.ErrActiveBookingExists):
		return "⚠️ У вас уже есть активная запись. Отмените её, прежде чем записываться снова."
	case errors.Is(err, database.ErrCutoffExceeded):
		return "⚠️ До записи осталось слишком мало времени, отмена уже невозможна. Свяжитесь с администратором."
	case errors.Is(err, database.ErrQuotaExceeded):
		return "⚠️ Лимит бесплатных отмен в этом месяце исчерпан. Свяжитесь с администратором."
	case errors.Is(err, database.ErrBookingNotFound):
		return "⚠️ Запись не найдена. Возможно, она уже отменена."
	case errors.Is(err, database.ErrInvalidState):
		return "⚠️ Эта запись уже отменена."
	case errors.Is(err, database.ErrUnauthorized):
		return "⚠️ Эта запись принадлежит другому пользователю."
	case errors.Is(err, ErrNotAuthenticated):
		return "⚠️ Сначала войдите в аккаунт."
	case errors.Is(err, ErrRateLimited):
		return "⚠️ Слишком много действий. Подождите минуту и попробуйте снова."
	case errors.Is(err, ErrOperationInProgress):
		return "⚠️ Предыдущая операция ещё выполняется. Подождите её завершения."
	case errors.Is(err, ErrBookingsInRange):
		return "⚠️ В этом дне есть активные записи. Сначала отмените их."
	case errors.Is(err, database.ErrStoreUnavailable):
		return "❌ Хранилище временно недоступно. Пожалуйста, попробуйте ещё раз."
	default:
		return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
	}
}
