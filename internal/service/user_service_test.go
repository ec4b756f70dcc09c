package service

import (
	"context"
	"io"
	"testing"

	"slotnik/internal/database"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestUserService(store *mockProfileStore, cache *stubCache, admins []string) *UserService {
	logger := zerolog.New(io.Discard)
	return NewUserService(store, cache, admins, &logger)
}

func TestEnsureProfile_CreatesWithUserRole(t *testing.T) {
	store := new(mockProfileStore)
	svc := newTestUserService(store, &stubCache{}, []string{"a-1"})

	created := &models.UserProfile{UID: "u-1", Role: models.RoleUser}
	store.On("GetUserProfile", mock.Anything, "u-1").Return(nil, database.ErrProfileNotFound).Once()
	store.On("CreateUserProfile", mock.Anything, mock.MatchedBy(func(p *models.UserProfile) bool {
		return p.UID == "u-1" && p.Role == models.RoleUser
	})).Return(nil)
	store.On("GetUserProfile", mock.Anything, "u-1").Return(created, nil)

	profile, err := svc.EnsureProfile(context.Background(), models.Principal{UID: "u-1"})
	assert.NoError(t, err)
	assert.False(t, profile.IsAdmin())
	store.AssertExpectations(t)
}

func TestEnsureProfile_ConfiguredAdminGetsRole(t *testing.T) {
	store := new(mockProfileStore)
	svc := newTestUserService(store, &stubCache{}, []string{"a-1"})

	created := &models.UserProfile{UID: "a-1", Role: models.RoleAdmin}
	store.On("GetUserProfile", mock.Anything, "a-1").Return(nil, database.ErrProfileNotFound).Once()
	store.On("CreateUserProfile", mock.Anything, mock.MatchedBy(func(p *models.UserProfile) bool {
		return p.Role == models.RoleAdmin
	})).Return(nil)
	store.On("GetUserProfile", mock.Anything, "a-1").Return(created, nil)

	profile, err := svc.EnsureProfile(context.Background(), models.Principal{UID: "a-1"})
	assert.NoError(t, err)
	assert.True(t, profile.IsAdmin())
}

func TestEnsureProfile_PromotesExistingConfiguredAdmin(t *testing.T) {
	store := new(mockProfileStore)
	svc := newTestUserService(store, &stubCache{}, []string{"a-1"})

	plain := &models.UserProfile{UID: "a-1", Role: models.RoleUser}
	promoted := &models.UserProfile{UID: "a-1", Role: models.RoleAdmin}
	store.On("GetUserProfile", mock.Anything, "a-1").Return(plain, nil).Once()
	store.On("SetUserRole", mock.Anything, "a-1", models.RoleAdmin).Return(nil)
	store.On("GetUserProfile", mock.Anything, "a-1").Return(promoted, nil)

	profile, err := svc.EnsureProfile(context.Background(), models.Principal{UID: "a-1"})
	assert.NoError(t, err)
	assert.True(t, profile.IsAdmin())
	store.AssertExpectations(t)
}

func TestReconcileAdmins(t *testing.T) {
	store := new(mockProfileStore)
	svc := newTestUserService(store, &stubCache{}, []string{"a-1", "a-2", "a-3"})

	// a-1 уже админ, a-2 надо повысить, a-3 еще не появлялся
	store.On("GetUserProfile", mock.Anything, "a-1").Return(&models.UserProfile{UID: "a-1", Role: models.RoleAdmin}, nil)
	store.On("GetUserProfile", mock.Anything, "a-2").Return(&models.UserProfile{UID: "a-2", Role: models.RoleUser}, nil)
	store.On("GetUserProfile", mock.Anything, "a-3").Return(nil, database.ErrProfileNotFound)
	store.On("SetUserRole", mock.Anything, "a-2", models.RoleAdmin).Return(nil)

	assert.NoError(t, svc.ReconcileAdmins(context.Background()))
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SetUserRole", mock.Anything, "a-1", models.RoleAdmin)
}

func TestSetBlocked_ClearsCacheHint(t *testing.T) {
	store := new(mockProfileStore)
	cache := &stubCache{}
	svc := newTestUserService(store, cache, nil)

	store.On("SetUserBlocked", mock.Anything, "u-1", true).Return(nil)

	assert.NoError(t, svc.SetBlocked(context.Background(), "u-1", true))
	assert.Equal(t, 1, cache.clearCalls)
}

func TestGetProfile_ColdCacheWarmsFromStore(t *testing.T) {
	store := new(mockProfileStore)
	cache := &stubCache{}
	svc := newTestUserService(store, cache, nil)

	stored := &models.UserProfile{UID: "u-1", DisplayName: "Chris"}
	store.On("GetUserProfile", mock.Anything, "u-1").Return(stored, nil)

	profile, err := svc.GetProfile(context.Background(), "u-1")
	assert.NoError(t, err)
	assert.Equal(t, "Chris", profile.DisplayName)
	assert.Equal(t, 1, cache.getCalls)
	assert.Equal(t, 1, cache.setCalls)
	assert.Equal(t, stored, cache.lastSet)
}

func TestGetProfile_WarmCacheSkipsStore(t *testing.T) {
	store := new(mockProfileStore)
	cache := &stubCache{cached: &models.UserProfile{UID: "u-1", DisplayName: "Cached"}}
	svc := newTestUserService(store, cache, nil)

	profile, err := svc.GetProfile(context.Background(), "u-1")
	assert.NoError(t, err)
	assert.Equal(t, "Cached", profile.DisplayName)
	store.AssertNotCalled(t, "GetUserProfile", mock.Anything, mock.Anything)
}

func TestSetRole_RejectsUnknownRole(t *testing.T) {
	svc := newTestUserService(new(mockProfileStore), &stubCache{}, nil)

	assert.Error(t, svc.SetRole(context.Background(), "u-1", "owner"))
}
