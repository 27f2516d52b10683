package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"hydro-dashboard/internal/identity"
	hlog "hydro-dashboard/internal/log"
)

// User-facing messages for failed authentication.
const (
	LoginFailedMessage  = "Login failed. Please check your phone number and PIN."
	SignUpFailedMessage = "Sign up failed. This phone number might already be registered."
	NameRequiredMessage = "Please enter your name"
)

// IdentityProvider is the external account store.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (identity.Account, error)
	SignUp(ctx context.Context, email, password string) (identity.Account, error)
	UpdateProfile(ctx context.Context, idToken, displayName string) error
}

// Profile is the user record kept next to the sensor data.
type Profile struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	CreatedAt   string `json:"createdAt"`
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	SaveProfile(ctx context.Context, uid string, profile Profile) error
}

// Session is the result of a successful login or sign-up.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UID       string    `json:"uid"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
}

// LoginService authenticates phone/PIN users and issues session tokens.
type LoginService struct {
	provider    IdentityProvider
	profiles    ProfileStore
	issuer      *Issuer
	clock       Clock
	defaultRole Role
	roles       map[string]Role
	logger      *zap.SugaredLogger
}

// LoginOption configures the login service.
type LoginOption func(*LoginService)

// WithDefaultRole sets the role granted to every account without an override.
func WithDefaultRole(role Role) LoginOption {
	return func(s *LoginService) {
		if normalized, ok := NormalizeRole(string(role)); ok {
			s.defaultRole = normalized
		}
	}
}

// WithRoleOverrides grants specific roles by provider uid.
func WithRoleOverrides(roles map[string]Role) LoginOption {
	return func(s *LoginService) {
		for uid, role := range roles {
			if normalized, ok := NormalizeRole(string(role)); ok {
				s.roles[uid] = normalized
			}
		}
	}
}

// WithLoginClock overrides the clock used for profile timestamps.
func WithLoginClock(clock Clock) LoginOption {
	return func(s *LoginService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLoginLogger sets the logger.
func WithLoginLogger(logger *zap.SugaredLogger) LoginOption {
	return func(s *LoginService) {
		s.logger = hlog.OrNop(logger)
	}
}

// NewLoginService constructs a login service. profiles may be nil.
func NewLoginService(provider IdentityProvider, profiles ProfileStore, issuer *Issuer, opts ...LoginOption) (*LoginService, error) {
	if provider == nil {
		return nil, errors.New("auth: nil identity provider")
	}
	if issuer == nil {
		return nil, errors.New("auth: nil issuer")
	}
	s := &LoginService{
		provider:    provider,
		profiles:    profiles,
		issuer:      issuer,
		clock:       systemClock{},
		defaultRole: RoleOperator,
		roles:       make(map[string]Role),
		logger:      hlog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login signs in with phone and PIN. Every provider failure becomes ErrLoginFailed.
func (s *LoginService) Login(ctx context.Context, phone, pin string) (Session, error) {
	email, err := PhoneToIdentity(phone)
	if err != nil {
		return Session{}, ErrLoginFailed
	}
	if err := ValidatePIN(pin); err != nil {
		return Session{}, err
	}
	account, err := s.provider.SignIn(ctx, email, pin)
	if err != nil {
		s.logger.Infow("login rejected", "identity", email, "error", err)
		return Session{}, ErrLoginFailed
	}
	return s.session(account.UID, account.DisplayName)
}

// SignUp creates an account, sets its display name and stores the profile.
func (s *LoginService) SignUp(ctx context.Context, name, phone, pin string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, ErrNameRequired
	}
	email, err := PhoneToIdentity(phone)
	if err != nil {
		return Session{}, ErrSignUpFailed
	}
	if err := ValidatePIN(pin); err != nil {
		return Session{}, err
	}
	account, err := s.provider.SignUp(ctx, email, pin)
	if err != nil {
		s.logger.Infow("sign up rejected", "identity", email, "error", err)
		return Session{}, ErrSignUpFailed
	}
	if err := s.provider.UpdateProfile(ctx, account.IDToken, name); err != nil {
		s.logger.Warnw("display name update failed", "uid", account.UID, "error", err)
		return Session{}, ErrSignUpFailed
	}
	if s.profiles != nil {
		profile := Profile{Name: name, PhoneNumber: phone, CreatedAt: s.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z")}
		if err := s.profiles.SaveProfile(ctx, account.UID, profile); err != nil {
			s.logger.Warnw("profile save failed", "uid", account.UID, "error", err)
			return Session{}, ErrSignUpFailed
		}
	}
	return s.session(account.UID, name)
}

func (s *LoginService) session(uid, name string) (Session, error) {
	role := s.defaultRole
	if override, ok := s.roles[uid]; ok {
		role = override
	}
	token, expires, err := s.issuer.Issue(uid, role, name)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, UID: uid, Name: name, Role: role}, nil
}
