package service

import (
	"context"
	"time"

	"slotnik/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) CreateBooking(ctx context.Context, profile *models.UserProfile, timeSlot int64, services []string) (string, error) {
	args := m.Called(ctx, profile, timeSlot, services)
	return args.String(0), args.Error(1)
}
func (m *mockEngine) CancelBooking(ctx context.Context, userID, bookingID string, timeSlot int64) error {
	return m.Called(ctx, userID, bookingID, timeSlot).Error(0)
}
func (m *mockEngine) AdminDeleteBooking(ctx context.Context, bookingID string, timeSlot int64, userID string) error {
	return m.Called(ctx, bookingID, timeSlot, userID).Error(0)
}
func (m *mockEngine) BlockSlot(ctx context.Context, timeSlot int64, note string) error {
	return m.Called(ctx, timeSlot, note).Error(0)
}
func (m *mockEngine) UnblockSlot(ctx context.Context, timeSlot int64) error {
	return m.Called(ctx, timeSlot).Error(0)
}
func (m *mockEngine) BlockDay(ctx context.Context, timeSlots []int64, note string) error {
	return m.Called(ctx, timeSlots, note).Error(0)
}
func (m *mockEngine) UnblockDay(ctx context.Context, timeSlots []int64) error {
	return m.Called(ctx, timeSlots).Error(0)
}
func (m *mockEngine) HasBookingsInSlots(ctx context.Context, timeSlots []int64) (bool, error) {
	args := m.Called(ctx, timeSlots)
	return args.Bool(0), args.Error(1)
}
func (m *mockEngine) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockEngine) GetBookingsForRange(ctx context.Context, from, to int64) ([]*models.Booking, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockEngine) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockEngine) GetPublicSlots(ctx context.Context, from, to int64) ([]*models.PublicSlot, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PublicSlot), args.Error(1)
}

type mockProfileStore struct {
	mock.Mock
}

func (m *mockProfileStore) CreateUserProfile(ctx context.Context, profile *models.UserProfile) error {
	return m.Called(ctx, profile).Error(0)
}
func (m *mockProfileStore) GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}
func (m *mockProfileStore) UpdateUserContact(ctx context.Context, uid, displayName, phone, contactID string) error {
	return m.Called(ctx, uid, displayName, phone, contactID).Error(0)
}
func (m *mockProfileStore) SetUserBlocked(ctx context.Context, uid string, blocked bool) error {
	return m.Called(ctx, uid, blocked).Error(0)
}
func (m *mockProfileStore) SetUserRole(ctx context.Context, uid, role string) error {
	return m.Called(ctx, uid, role).Error(0)
}
func (m *mockProfileStore) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserProfile), args.Error(1)
}

// stubSession is a hand-rolled session double: the provider surface is small
// and state-driven, a mock adds nothing here.
type stubSession struct {
	principal models.Principal
	signedIn  bool
	profile   *models.UserProfile
	refreshed int
	hints     []string
}

func (s *stubSession) Current() (models.Principal, bool) {
	return s.principal, s.signedIn
}

func (s *stubSession) Profile() *models.UserProfile {
	return s.profile.Clone()
}

func (s *stubSession) Refresh(_ context.Context) error {
	s.refreshed++
	return nil
}

func (s *stubSession) UpdateContactHint(displayName, phone, contactID string) {
	s.hints = append(s.hints, displayName+"/"+phone+"/"+contactID)
}

type stubCache struct {
	allowed    bool
	cached     *models.UserProfile
	getCalls   int
	setCalls   int
	lastSet    *models.UserProfile
	rateCalls  int
	clearCalls int
}

func (c *stubCache) GetProfile(_ context.Context, _ string) (*models.UserProfile, error) {
	c.getCalls++
	return c.cached, nil
}

func (c *stubCache) SetProfile(_ context.Context, profile *models.UserProfile) error {
	c.setCalls++
	c.lastSet = profile
	return nil
}

func (c *stubCache) ClearProfile(_ context.Context, _ string) error {
	c.clearCalls++
	return nil
}

func (c *stubCache) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	c.rateCalls++
	return c.allowed, nil
}
