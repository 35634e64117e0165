package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dark_api/internal/common"
	"dark_api/internal/common/security"
	"dark_api/internal/domain/model"
	"dark_api/internal/domain/repository"

	"github.com/google/uuid"
)

// AuthService issues tokens and resolves principals back to users.
type AuthService struct {
	userRepo repository.UserRepository
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, common.Errorf("username and password are required: %w", common.ErrBadRequest)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser, // Default role
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo might return common.ErrConflict
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.respond(user)
}

func (s *AuthService) Login(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}
	return s.respond(user)
}

func (s *AuthService) respond(user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Token: token}, nil
}

// ResolveUser maps a principal name to the stored user. A name that no longer
// resolves (deleted account, stale token) is common.ErrUnauthorized.
func (s *AuthService) ResolveUser(ctx context.Context, name string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("principal %q: %w", name, common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("resolve principal %q: %w", name, err)
	}
	user.HashedPassword = ""
	return user, nil
}

func (s *AuthService) ResolveUserID(ctx context.Context, name string) (string, error) {
	user, err := s.ResolveUser(ctx, name)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
