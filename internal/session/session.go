package session

import (
	"context"
	"errors"
	"sync"

	"slotnik/internal/database"
	"slotnik/internal/domain"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
)

// Provider holds the authenticated principal for the process and a snapshot
// of their profile, refreshed from the store on demand. Contact hints written
// through UpdateContactHint only patch the local snapshot; the store copy is
// updated by the orchestrator inside its own flow.
type Provider struct {
	store  domain.ProfileStore
	logger *zerolog.Logger

	mu        sync.RWMutex
	principal models.Principal
	signedIn  bool
	profile   *models.UserProfile
	observers []func(*models.UserProfile)
}

func NewProvider(store domain.ProfileStore, logger *zerolog.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger,
	}
}

// SignIn installs the principal and loads (or lazily creates) their profile.
func (p *Provider) SignIn(ctx context.Context, principal models.Principal) error {
	if principal.UID == "" {
		return errors.New("principal uid is empty")
	}

	profile, err := p.store.GetUserProfile(ctx, principal.UID)
	if errors.Is(err, database.ErrProfileNotFound) {
		profile = &models.UserProfile{
			UID:         principal.UID,
			DisplayName: principal.DisplayName,
			PhoneNumber: principal.Contact,
			Role:        models.RoleUser,
		}
		if err := p.store.CreateUserProfile(ctx, profile); err != nil {
			return err
		}
		profile, err = p.store.GetUserProfile(ctx, principal.UID)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	p.mu.Lock()
	p.principal = principal
	p.signedIn = true
	p.profile = profile
	p.mu.Unlock()

	p.notify(profile)
	p.logger.Info().Str("uid", principal.UID).Msg("session established")
	return nil
}

// Subscribe registers an observer called with a fresh snapshot copy after
// every sign-in and refresh. A nil snapshot means the profile disappeared.
func (p *Provider) Subscribe(fn func(*models.UserProfile)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *Provider) notify(profile *models.UserProfile) {
	p.mu.RLock()
	observers := append(([]func(*models.UserProfile))(nil), p.observers...)
	p.mu.RUnlock()

	for _, fn := range observers {
		fn(profile.Clone())
	}
}

// SignOut drops the principal and the profile snapshot.
func (p *Provider) SignOut() {
	p.mu.Lock()
	p.principal = models.Principal{}
	p.signedIn = false
	p.profile = nil
	p.mu.Unlock()
}

func (p *Provider) Current() (models.Principal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.principal, p.signedIn
}

// Profile returns the latest snapshot. The copy is safe to mutate.
func (p *Provider) Profile() *models.UserProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile.Clone()
}

// Refresh re-reads the profile from the store. A missing profile clears the
// snapshot without failing the session.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.RLock()
	uid := p.principal.UID
	signedIn := p.signedIn
	p.mu.RUnlock()

	if !signedIn {
		return errors.New("no active session")
	}

	profile, err := p.store.GetUserProfile(ctx, uid)
	if errors.Is(err, database.ErrProfileNotFound) {
		p.mu.Lock()
		p.profile = nil
		p.mu.Unlock()
		p.notify(nil)
		return nil
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
	p.notify(profile)
	return nil
}

// UpdateContactHint patches the local snapshot with contact details collected
// during booking. Empty fields are left as they were.
func (p *Provider) UpdateContactHint(displayName, phone, contactID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.profile == nil {
		return
	}
	if displayName != "" {
		p.profile.DisplayName = displayName
	}
	if phone != "" {
		p.profile.PhoneNumber = phone
	}
	if contactID != "" {
		p.profile.ContactID = contactID
	}
}
