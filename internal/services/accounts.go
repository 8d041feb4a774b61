package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"cancionero/internal/models"
	"cancionero/internal/repository"
)

const (
	MinPasswordLength = 3
	// bcrypt ignores everything past 72 bytes
	MaxPasswordBytes = 72
	MaxNameLength    = 100
)

type AccountService struct {
	store        *repository.Store
	catalog      cacheInvalidator
	auditService *AuditService
	logger       *slog.Logger
}

func NewAccountService(store *repository.Store, catalog cacheInvalidator, auditService *AuditService, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:        store,
		catalog:      catalog,
		auditService: auditService,
		logger:       logger,
	}
}

// Register creates a user. The name is stored as typed apart from
// surrounding whitespace.
func (s *AccountService) Register(ctx context.Context, name, password, ip string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: a user name is required", ErrValidation)
	}
	// the name is a path segment of the owner's routes
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: the user name cannot contain '/'", ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: the user name must be at most %d characters", ErrValidation, MaxNameLength)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: the password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return nil, fmt.Errorf("%w: the password must be at most %d bytes", ErrValidation, MaxPasswordBytes)
	}

	user, err := s.store.CreateUser(ctx, name, password)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, fmt.Errorf("%w: the user name %q is taken", ErrDuplicate, name)
		}
		return nil, err
	}

	s.logger.Info("User registered", "user", user.Name)
	s.auditService.LogAction(&user.ID, "REGISTER", user.ExternalID, nil, ip)
	return user, nil
}

// Login checks the credentials and binds the session to the user.
func (s *AccountService) Login(ctx context.Context, session Session, name, password, ip string) (*models.User, error) {
	user, err := s.store.Authenticate(ctx, name, password)
	if err != nil {
		return nil, err
	}
	if err := StartSession(session, user); err != nil {
		return nil, err
	}
	s.auditService.LogAction(&user.ID, "LOGIN", user.ExternalID, nil, ip)
	return user, nil
}

func (s *AccountService) Logout(ctx context.Context, session Session, ip string) error {
	name, err := RequireSession(session)
	if err != nil {
		// logging out twice is fine
		return nil
	}
	if err := ClearSession(session); err != nil {
		return err
	}
	if user, err := s.store.FindUser(ctx, name); err == nil {
		s.auditService.LogAction(&user.ID, "LOGOUT", user.ExternalID, nil, ip)
	}
	return nil
}

// DeleteAccount removes the owner, their favorites and every song left
// without holders, then ends the session.
func (s *AccountService) DeleteAccount(ctx context.Context, session Session, ownerName, ip string) ([]uint, error) {
	if err := RequireOwnership(session, ownerName); err != nil {
		return nil, err
	}
	user, err := s.store.FindUser(ctx, ownerName)
	if err != nil {
		return nil, err
	}

	removed, err := s.store.DeleteUser(ctx, user)
	if err != nil {
		return nil, err
	}

	s.catalog.Invalidate(ctx, removed...)
	if err := ClearSession(session); err != nil {
		s.logger.Warn("Failed to clear session after account deletion", "user", user.Name, "error", err)
	}

	ids := make([]string, 0, len(removed))
	for _, id := range removed {
		ids = append(ids, strconv.FormatUint(uint64(id), 10))
	}
	s.logger.Info("Account deleted", "user", user.Name, "orphan_songs_removed", len(removed))
	s.auditService.LogAction(nil, "DELETE_ACCOUNT", user.ExternalID, map[string]interface{}{
		"name":          user.Name,
		"removed_songs": ids,
	}, ip)
	return removed, nil
}
