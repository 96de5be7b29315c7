package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service is the auth gate. Authenticate resolves a presented credential to a
// principal; Authorize checks the principal against the organization a request
// targets.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Principal, error)
	Authorize(principal *Principal, orgID snowflake.ID) error
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
