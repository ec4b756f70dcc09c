package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"slotnik/internal/calendar"
	"slotnik/internal/database"
	"slotnik/internal/domain"
	"slotnik/internal/events"
	"slotnik/internal/metrics"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
)

// Orchestrator-level failures, on top of the engine's sentinels.
var (
	ErrNotAuthenticated    = errors.New("no authenticated principal")
	ErrOperationInProgress = errors.New("another booking operation is in progress")
	ErrRateLimited         = errors.New("too many actions, try again later")
	ErrBookingsInRange     = errors.New("range still has active bookings")
)

// ContactInfo is ad-hoc contact data supplied with a booking. When Persist is
// false the override is applied only to the booking's snapshot, the stored
// profile stays untouched.
type ContactInfo struct {
	DisplayName string
	Phone       string
	ContactID   string
	Persist     bool
}

// BookingService wraps the transaction engine for the client side of the
// boundary: auth checks, contact-info resolution, local preflight, and
// translation of low-level failures into specific reasons.
type BookingService struct {
	engine     domain.BookingEngine
	profiles   domain.ProfileStore
	session    domain.SessionProvider
	cache      domain.ProfileCache
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	notifier   domain.Notifier
	policy     calendar.Policy
	limits     database.Limits
	rateLimit  int
	rateWindow time.Duration
	logger     *zerolog.Logger

	// одна мутация за раз, как loading-флаг в клиенте
	inFlight atomic.Bool

	now func() time.Time
}

func NewBookingService(
	engine domain.BookingEngine,
	profiles domain.ProfileStore,
	session domain.SessionProvider,
	cache domain.ProfileCache,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	notifier domain.Notifier,
	policy calendar.Policy,
	limits database.Limits,
	logger *zerolog.Logger,
) *BookingService {
	if limits.CancelCutoff <= 0 {
		limits.CancelCutoff = models.DefaultCancelCutoffHours * time.Hour
	}
	if limits.MonthlyCancelLimit <= 0 {
		limits.MonthlyCancelLimit = models.DefaultMonthlyCancelLimit
	}
	return &BookingService{
		engine:     engine,
		profiles:   profiles,
		session:    session,
		cache:      cache,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		notifier:   notifier,
		policy:     policy,
		limits:     limits,
		rateLimit:  models.RateLimitActions,
		rateWindow: models.RateLimitWindow * time.Second,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *BookingService) begin() error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	return nil
}

func (s *BookingService) end() {
	s.inFlight.Store(false)
}

func (s *BookingService) checkRate(ctx context.Context, uid string) error {
	if s.cache == nil {
		return nil
	}
	allowed, err := s.cache.CheckRateLimit(ctx, uid, s.rateLimit, s.rateWindow)
	if err != nil {
		// Лимитер не должен блокировать бронирования при сбое кэша
		s.logger.Warn().Err(err).Msg("rate limit check failed, allowing")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// resolveProfile returns the profile to hand to the engine, applying the
// contact-info rules: create-on-first-booking, persisted update, or a
// transient override copy.
func (s *BookingService) resolveProfile(ctx context.Context, principal models.Principal, contact *ContactInfo) (*models.UserProfile, error) {
	profile, err := s.profiles.GetUserProfile(ctx, principal.UID)
	if errors.Is(err, database.ErrProfileNotFound) {
		created := &models.UserProfile{
			UID:         principal.UID,
			DisplayName: principal.DisplayName,
			PhoneNumber: principal.Contact,
			Role:        models.RoleUser,
		}
		if contact != nil {
			applyContact(created, contact)
		}
		if err := s.profiles.CreateUserProfile(ctx, created); err != nil {
			return nil, err
		}
		return s.profiles.GetUserProfile(ctx, principal.UID)
	}
	if err != nil {
		return nil, err
	}

	if contact == nil {
		return profile, nil
	}

	if contact.Persist {
		updated := profile.Clone()
		applyContact(updated, contact)
		if err := s.profiles.UpdateUserContact(ctx, profile.UID, updated.DisplayName, updated.PhoneNumber, updated.ContactID); err != nil {
			return nil, err
		}
		// Оптимистичное обновление — только подсказка для отображения
		s.session.UpdateContactHint(updated.DisplayName, updated.PhoneNumber, updated.ContactID)
		if s.cache != nil {
			if err := s.cache.SetProfile(ctx, updated); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache profile hint")
			}
		}
		return updated, nil
	}

	// Transient copy: the booking snapshot gets the one-off contact info,
	// the stored profile is not mutated.
	transient := profile.Clone()
	applyContact(transient, contact)
	return transient, nil
}

func applyContact(profile *models.UserProfile, contact *ContactInfo) {
	if contact.DisplayName != "" {
		profile.DisplayName = contact.DisplayName
	}
	if contact.Phone != "" {
		profile.PhoneNumber = contact.Phone
	}
	if contact.ContactID != "" {
		profile.ContactID = contact.ContactID
	}
}

// CreateBooking books a slot for the current principal.
func (s *BookingService) CreateBooking(ctx context.Context, timeSlot int64, services []string, contact *ContactInfo) (string, error) {
	principal, ok := s.session.Current()
	if !ok {
		return "", ErrNotAuthenticated
	}
	if err := s.begin(); err != nil {
		return "", err
	}
	defer s.end()

	if err := s.checkRate(ctx, principal.UID); err != nil {
		return "", err
	}

	profile, err := s.resolveProfile(ctx, principal, contact)
	if err != nil {
		return "", err
	}

	id, err := s.engine.CreateBooking(ctx, profile, timeSlot, services)
	if err != nil {
		metrics.IncBookingFailure(failureReason(err))
		s.logger.Warn().Err(err).Str("uid", principal.UID).Int64("time_slot", timeSlot).Msg("booking failed")
		return "", err
	}

	metrics.IncBookingCreated()
	s.logger.Info().Str("booking_id", id).Str("uid", principal.UID).Int64("time_slot", timeSlot).Msg("booking created")

	s.afterBookingChange(ctx, id, events.EventBookingCreated, models.SyncTaskUpsert)
	return id, nil
}

// CancelBooking cancels the current principal's booking. Administrators route
// through the penalty-free override regardless of cutoff or quota state.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) error {
	principal, ok := s.session.Current()
	if !ok {
		return ErrNotAuthenticated
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	booking, err := s.engine.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	profile := s.session.Profile()

	if profile.IsAdmin() {
		if err := s.engine.AdminDeleteBooking(ctx, bookingID, booking.TimeSlot, booking.UserID); err != nil {
			metrics.IncBookingFailure(failureReason(err))
			return err
		}
		metrics.IncBookingCancelled(models.CanceledByAdmin)
		s.logger.Info().Str("booking_id", bookingID).Str("admin_uid", principal.UID).Msg("booking removed by admin")
		s.afterBookingChange(ctx, bookingID, events.EventBookingCancelled, models.SyncTaskUpdateStatus)
		return nil
	}

	// Локальная предварительная проверка — быстрый отказ с конкретной
	// причиной; решает всё равно движок.
	if err := s.preflightCancel(booking, profile); err != nil {
		metrics.IncBookingFailure(failureReason(err))
		return err
	}

	err = s.engine.CancelBooking(ctx, principal.UID, bookingID, booking.TimeSlot)
	if errors.Is(err, database.ErrPermissionDenied) {
		// Свежий снимок профиля: квоту могли выбрать параллельно
		err = s.rediagnose(booking, s.session.Profile())
	}
	if err != nil {
		metrics.IncBookingFailure(failureReason(err))
		s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("cancellation failed")
		return err
	}

	metrics.IncBookingCancelled(models.CanceledByUser)
	s.logger.Info().Str("booking_id", bookingID).Str("uid", principal.UID).Msg("booking cancelled")
	s.afterBookingChange(ctx, bookingID, events.EventBookingCancelled, models.SyncTaskUpdateStatus)
	return nil
}

func (s *BookingService) preflightCancel(booking *models.Booking, profile *models.UserProfile) error {
	now := s.now()
	if booking.TimeSlot-now.UnixMilli() <= s.limits.CancelCutoff.Milliseconds() {
		return database.ErrCutoffExceeded
	}
	if profile != nil && profile.CancellationsIn(models.PeriodKey(now)) >= s.limits.MonthlyCancelLimit {
		return database.ErrQuotaExceeded
	}
	return nil
}

// rediagnose maps a generic access-control denial back to the specific rule
// that was violated, recomputed against current time. The generic denial is
// never surfaced.
func (s *BookingService) rediagnose(booking *models.Booking, profile *models.UserProfile) error {
	now := s.now()
	if booking.TimeSlot-now.UnixMilli() <= s.limits.CancelCutoff.Milliseconds() {
		return database.ErrCutoffExceeded
	}
	if profile != nil && profile.CancellationsIn(models.PeriodKey(now)) >= s.limits.MonthlyCancelLimit {
		return database.ErrQuotaExceeded
	}
	return database.ErrUnauthorized
}

// afterBookingChange handles the non-transactional tail of a successful
// mutation: session refresh, events, sheet sync, admin notification.
func (s *BookingService) afterBookingChange(ctx context.Context, bookingID, eventType, taskType string) {
	if err := s.session.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh session profile")
	}

	booking, err := s.engine.GetBooking(ctx, bookingID)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("failed to load booking for post-processing")
		return
	}

	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(eventType, events.BookingEventPayload{
			BookingID:   booking.ID,
			UserID:      booking.UserID,
			DisplayName: booking.UserSnapshot.DisplayName,
			TimeSlot:    booking.TimeSlot,
			Services:    booking.Services,
			Status:      booking.Status,
			CanceledBy:  booking.CanceledBy,
		})
	}

	if s.syncWorker != nil {
		if err := s.syncWorker.EnqueueTask(ctx, taskType, booking.ID, booking, booking.Status); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("failed to enqueue sheet sync")
		}
	}

	if s.notifier != nil {
		var err error
		if eventType == events.EventBookingCreated {
			err = s.notifier.BookingCreated(ctx, booking)
		} else {
			err = s.notifier.BookingCancelled(ctx, booking, booking.CanceledBy)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("failed to notify admins")
		}
	}
}

func (s *BookingService) requireAdmin() (models.Principal, error) {
	principal, ok := s.session.Current()
	if !ok {
		return models.Principal{}, ErrNotAuthenticated
	}
	if !s.session.Profile().IsAdmin() {
		return models.Principal{}, database.ErrUnauthorized
	}
	return principal, nil
}

// BlockSlot places an administrative lock on a single slot.
func (s *BookingService) BlockSlot(ctx context.Context, timeSlot int64, note string) error {
	principal, err := s.requireAdmin()
	if err != nil {
		return err
	}
	if err := s.engine.BlockSlot(ctx, timeSlot, note); err != nil {
		return err
	}
	s.publishSlotEvent(events.EventSlotBlocked, []int64{timeSlot}, note, principal.UID)
	return nil
}

func (s *BookingService) UnblockSlot(ctx context.Context, timeSlot int64) error {
	principal, err := s.requireAdmin()
	if err != nil {
		return err
	}
	if err := s.engine.UnblockSlot(ctx, timeSlot); err != nil {
		return err
	}
	s.publishSlotEvent(events.EventSlotUnblocked, []int64{timeSlot}, "", principal.UID)
	return nil
}

// BlockDay blocks every slot of the given day as one batched write. A slot
// holding a live booking would have its lock record rewritten as an admin
// block, so the whole call is refused while any exist.
func (s *BookingService) BlockDay(ctx context.Context, day time.Time, note string) error {
	principal, err := s.requireAdmin()
	if err != nil {
		return err
	}
	slots := s.policy.GenerateDailySlots(day)

	hasBookings, err := s.engine.HasBookingsInSlots(ctx, slots)
	if err != nil {
		return err
	}
	if hasBookings {
		return ErrBookingsInRange
	}

	if err := s.engine.BlockDay(ctx, slots, note); err != nil {
		return err
	}
	s.publishSlotEvent(events.EventSlotBlocked, slots, note, principal.UID)
	return nil
}

// UnblockDay removes the day's lock records. Slots holding an active booking
// would lose their lock too, so the whole call is refused while any exist.
func (s *BookingService) UnblockDay(ctx context.Context, day time.Time) error {
	principal, err := s.requireAdmin()
	if err != nil {
		return err
	}
	slots := s.policy.GenerateDailySlots(day)

	hasBookings, err := s.engine.HasBookingsInSlots(ctx, slots)
	if err != nil {
		return err
	}
	if hasBookings {
		return ErrBookingsInRange
	}

	if err := s.engine.UnblockDay(ctx, slots); err != nil {
		return err
	}
	s.publishSlotEvent(events.EventSlotUnblocked, slots, "", principal.UID)
	return nil
}

func (s *BookingService) publishSlotEvent(eventType string, slots []int64, note, adminUID string) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.PublishJSON(eventType, events.SlotEventPayload{
		TimeSlots: slots,
		Note:      note,
		AdminUID:  adminUID,
	})
}

// AvailableSlots returns the day's slots that carry no lock record.
func (s *BookingService) AvailableSlots(ctx context.Context, day time.Time) ([]int64, error) {
	from, to := s.policy.DayRange(day)

	locked, err := s.engine.GetPublicSlots(ctx, from, to)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]bool, len(locked))
	for _, slot := range locked {
		taken[slot.TimeSlot] = true
	}

	var free []int64
	for _, instant := range s.policy.GenerateDailySlots(day) {
		if !taken[instant] {
			free = append(free, instant)
		}
	}
	return free, nil
}

// DayBookings returns the bookings of one day, admin view.
func (s *BookingService) DayBookings(ctx context.Context, day time.Time) ([]*models.Booking, error) {
	if _, err := s.requireAdmin(); err != nil {
		return nil, err
	}
	from, to := s.policy.DayRange(day)
	return s.engine.GetBookingsForRange(ctx, from, to)
}

// MyBookings returns the current principal's booking history, newest first.
func (s *BookingService) MyBookings(ctx context.Context) ([]*models.Booking, error) {
	principal, ok := s.session.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return s.engine.GetUserBookings(ctx, principal.UID)
}
