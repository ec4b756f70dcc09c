package session

import (
	"context"
	"io"
	"sync"
	"testing"

	"slotnik/internal/database"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]*models.UserProfile)}
}

func (s *fakeProfileStore) CreateUserProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UID]; ok {
		return nil
	}
	s.profiles[profile.UID] = profile.Clone()
	return nil
}

func (s *fakeProfileStore) GetUserProfile(_ context.Context, uid string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, database.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *fakeProfileStore) UpdateUserContact(_ context.Context, uid, displayName, phone, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return database.ErrProfileNotFound
	}
	p.DisplayName = displayName
	p.PhoneNumber = phone
	p.ContactID = contactID
	return nil
}

func (s *fakeProfileStore) SetUserBlocked(_ context.Context, uid string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return database.ErrProfileNotFound
	}
	p.IsBlocked = blocked
	return nil
}

func (s *fakeProfileStore) SetUserRole(_ context.Context, uid, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return database.ErrProfileNotFound
	}
	p.Role = role
	return nil
}

func (s *fakeProfileStore) ListUsers(_ context.Context) ([]*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	return out, nil
}

func newTestProvider(store *fakeProfileStore) *Provider {
	logger := zerolog.New(io.Discard)
	return NewProvider(store, &logger)
}

func TestProvider_SignInCreatesProfile(t *testing.T) {
	store := newFakeProfileStore()
	p := newTestProvider(store)

	err := p.SignIn(context.Background(), models.Principal{UID: "u-1", DisplayName: "Chris", Contact: "0912345678"})
	assert.NoError(t, err)

	principal, ok := p.Current()
	assert.True(t, ok)
	assert.Equal(t, "u-1", principal.UID)

	profile := p.Profile()
	assert.NotNil(t, profile)
	assert.Equal(t, "Chris", profile.DisplayName)
	assert.Equal(t, models.RoleUser, profile.Role)
}

func TestProvider_SignInExistingProfile(t *testing.T) {
	store := newFakeProfileStore()
	store.profiles["u-1"] = &models.UserProfile{UID: "u-1", DisplayName: "Stored", Role: models.RoleAdmin}
	p := newTestProvider(store)

	err := p.SignIn(context.Background(), models.Principal{UID: "u-1", DisplayName: "Fresh"})
	assert.NoError(t, err)

	profile := p.Profile()
	assert.Equal(t, "Stored", profile.DisplayName)
	assert.True(t, profile.IsAdmin())
}

func TestProvider_NotSignedIn(t *testing.T) {
	p := newTestProvider(newFakeProfileStore())

	_, ok := p.Current()
	assert.False(t, ok)
	assert.Nil(t, p.Profile())
	assert.Error(t, p.Refresh(context.Background()))
}

func TestProvider_RefreshPicksUpStoreChanges(t *testing.T) {
	store := newFakeProfileStore()
	p := newTestProvider(store)

	assert.NoError(t, p.SignIn(context.Background(), models.Principal{UID: "u-1"}))

	store.mu.Lock()
	store.profiles["u-1"].TotalBookings = 3
	store.mu.Unlock()

	assert.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int64(3), p.Profile().TotalBookings)
}

func TestProvider_RefreshMissingProfileClearsSnapshot(t *testing.T) {
	store := newFakeProfileStore()
	p := newTestProvider(store)

	assert.NoError(t, p.SignIn(context.Background(), models.Principal{UID: "u-1"}))

	store.mu.Lock()
	delete(store.profiles, "u-1")
	store.mu.Unlock()

	assert.NoError(t, p.Refresh(context.Background()))
	assert.Nil(t, p.Profile())
}

func TestProvider_UpdateContactHint(t *testing.T) {
	store := newFakeProfileStore()
	p := newTestProvider(store)

	assert.NoError(t, p.SignIn(context.Background(), models.Principal{UID: "u-1", DisplayName: "Chris"}))

	p.UpdateContactHint("", "0987654321", "")
	profile := p.Profile()
	assert.Equal(t, "Chris", profile.DisplayName)
	assert.Equal(t, "0987654321", profile.PhoneNumber)

	// Snapshot mutations stay local, the store copy is untouched.
	stored, err := store.GetUserProfile(context.Background(), "u-1")
	assert.NoError(t, err)
	assert.NotEqual(t, "0987654321", stored.PhoneNumber)
}

func TestProvider_SignOut(t *testing.T) {
	store := newFakeProfileStore()
	p := newTestProvider(store)

	assert.NoError(t, p.SignIn(context.Background(), models.Principal{UID: "u-1"}))
	p.SignOut()

	_, ok := p.Current()
	assert.False(t, ok)
	assert.Nil(t, p.Profile())
}

func TestProvider_SubscribeObservesRefreshes(t *testing.T) {
	store := newFakeProfileStore()
	p := newTestProvider(store)

	var seen []*models.UserProfile
	p.Subscribe(func(profile *models.UserProfile) {
		seen = append(seen, profile)
	})

	assert.NoError(t, p.SignIn(context.Background(), models.Principal{UID: "u-1", DisplayName: "Chris"}))
	require.Len(t, seen, 1)
	assert.Equal(t, "Chris", seen[0].DisplayName)

	store.profiles["u-1"].DisplayName = "Updated"
	assert.NoError(t, p.Refresh(context.Background()))
	require.Len(t, seen, 2)
	assert.Equal(t, "Updated", seen[1].DisplayName)

	// Наблюдатель получает копию
	seen[1].DisplayName = "mutated"
	assert.Equal(t, "Updated", p.Profile().DisplayName)

	delete(store.profiles, "u-1")
	assert.NoError(t, p.Refresh(context.Background()))
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
}
