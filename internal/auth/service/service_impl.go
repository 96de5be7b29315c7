package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgstore/internal/auth/domain"
	"github.com/smallbiznis/orgstore/internal/auth/password"
	"github.com/smallbiznis/orgstore/internal/auth/token"
	"go.uber.org/zap"
)

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	tokens *token.Service
}

func New(log *zap.Logger, repo domain.Repository, tokens *token.Service) domain.Service {
	return &Service{
		log:    log.Named("auth.service"),
		repo:   repo,
		tokens: tokens,
	}
}

// Login verifies the presented secret against the stored digest and issues a
// token bound to the admin's organization. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, admin.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	raw, expiresAt, err := s.tokens.Issue(admin.ID, admin.OrgID)
	if err != nil {
		return nil, err
	}

	s.log.Debug("admin login", zap.String("admin_id", admin.ID.String()))

	return &domain.LoginResult{
		Token:     raw,
		TokenType: "bearer",
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate resolves a presented token to a principal. The admin must still
// exist and still be bound to the organization the token names; a token issued
// before the organization was deleted is rejected here.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	adminID, orgID, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	admin, err := s.repo.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if admin.OrgID != orgID {
		return nil, domain.ErrInvalidCredentials
	}

	return &domain.Principal{
		AdminID: admin.ID,
		OrgID:   admin.OrgID,
		Email:   admin.Email,
	}, nil
}

// Authorize checks that the principal's bound organization is the one the
// request targets. Exact match; an admin reaches exactly one organization.
func (s *Service) Authorize(principal *domain.Principal, orgID snowflake.ID) error {
	if principal == nil {
		return domain.ErrInvalidCredentials
	}
	if principal.OrgID != orgID {
		return domain.ErrForbidden
	}
	return nil
}

// NormalizeEmail validates an address and returns the bare address part in
// lower case. A display-name form like "Admin <admin@acme.com>" normalizes to
// the same stored email as admin@acme.com.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidCredentials
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return strings.ToLower(addr.Address), nil
}
