package service

import (
	"context"
	"errors"

	"slotnik/internal/database"
	"slotnik/internal/domain"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	profiles  domain.ProfileStore
	cache     domain.ProfileCache
	logger    *zerolog.Logger
	adminsMap map[string]bool
}

func NewUserService(profiles domain.ProfileStore, cache domain.ProfileCache, admins []string, logger *zerolog.Logger) *UserService {
	adminsMap := make(map[string]bool)
	for _, uid := range admins {
		adminsMap[uid] = true
	}

	return &UserService{
		profiles:  profiles,
		cache:     cache,
		logger:    logger,
		adminsMap: adminsMap,
	}
}

func (s *UserService) IsConfiguredAdmin(uid string) bool {
	return s.adminsMap[uid]
}

// EnsureProfile loads the profile for a principal, creating it on first
// contact. UIDs listed in the admin config get the admin role.
func (s *UserService) EnsureProfile(ctx context.Context, principal models.Principal) (*models.UserProfile, error) {
	profile, err := s.profiles.GetUserProfile(ctx, principal.UID)
	if err == nil {
		if s.IsConfiguredAdmin(principal.UID) && !profile.IsAdmin() {
			if err := s.profiles.SetUserRole(ctx, principal.UID, models.RoleAdmin); err != nil {
				return nil, err
			}
			return s.profiles.GetUserProfile(ctx, principal.UID)
		}
		return profile, nil
	}
	if !errors.Is(err, database.ErrProfileNotFound) {
		return nil, err
	}

	role := models.RoleUser
	if s.IsConfiguredAdmin(principal.UID) {
		role = models.RoleAdmin
	}
	created := &models.UserProfile{
		UID:         principal.UID,
		DisplayName: principal.DisplayName,
		PhoneNumber: principal.Contact,
		Role:        role,
	}
	if err := s.profiles.CreateUserProfile(ctx, created); err != nil {
		return nil, err
	}

	s.logger.Info().Str("uid", principal.UID).Str("role", role).Msg("profile created")
	return s.profiles.GetUserProfile(ctx, principal.UID)
}

// ReconcileAdmins promotes already-known profiles from the configured admin
// list. UIDs without a profile are picked up later by EnsureProfile.
func (s *UserService) ReconcileAdmins(ctx context.Context) error {
	for uid := range s.adminsMap {
		profile, err := s.profiles.GetUserProfile(ctx, uid)
		if errors.Is(err, database.ErrProfileNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if profile.IsAdmin() {
			continue
		}
		if err := s.profiles.SetUserRole(ctx, uid, models.RoleAdmin); err != nil {
			return err
		}
		s.logger.Info().Str("uid", uid).Msg("configured admin promoted")
	}
	return nil
}

// SetBlocked flips the booking ban flag and drops any stale cache hint so the
// next read is authoritative.
func (s *UserService) SetBlocked(ctx context.Context, uid string, blocked bool) error {
	if err := s.profiles.SetUserBlocked(ctx, uid, blocked); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.ClearProfile(ctx, uid); err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Msg("failed to clear cached profile")
		}
	}
	s.logger.Info().Str("uid", uid).Bool("blocked", blocked).Msg("user block flag updated")
	return nil
}

func (s *UserService) SetRole(ctx context.Context, uid, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return errors.New("unknown role: " + role)
	}
	if err := s.profiles.SetUserRole(ctx, uid, role); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.ClearProfile(ctx, uid); err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Msg("failed to clear cached profile")
		}
	}
	return nil
}

// GetProfile serves display reads through the cache; a miss falls back to the
// store and warms the cache. Eligibility decisions never go through here.
func (s *UserService) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if s.cache != nil {
		cached, err := s.cache.GetProfile(ctx, uid)
		if err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Msg("profile cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := s.profiles.GetUserProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, profile); err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Msg("failed to cache profile")
		}
	}
	return profile, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	return s.profiles.ListUsers(ctx)
}
