package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/media"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

// SignupInput is the body of a signup request.
type SignupInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

// ProfileInput is the body of a profile update. ProfilePic may be a data URI.
type ProfileInput struct {
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

// Signup creates an account and returns it with a fresh token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*store.User, string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, "", fmt.Errorf("%w: missing details", ErrInvalidInput)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, auth.MinPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}
	u := &store.User{
		Email:        in.Email,
		FullName:     in.FullName,
		Bio:          strings.TrimSpace(in.Bio),
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}

	tok, err := s.tokens.Mint(u.ID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return u, tok, nil
}

// Login checks credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, "", err
	}
	tok, err := s.tokens.Mint(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, tok, nil
}

// Profile returns the account for userID.
func (s *Service) Profile(ctx context.Context, userID string) (*store.User, error) {
	return s.store.GetUser(ctx, userID)
}

// UpdateProfile applies a profile edit. A data URI picture is uploaded
// first; unlike message images, a failed upload fails the update.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*store.User, error) {
	pic := in.ProfilePic
	if media.IsDataURI(pic) {
		url, err := s.uploader.Upload(ctx, pic)
		if err != nil {
			s.bus.Publish(bus.NewEvent(bus.KindUploadFailed, bus.UploadFailed{UserID: userID, Err: err.Error()}))
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		pic = url
	}
	return s.store.UpdateProfile(ctx, userID, store.ProfileUpdate{
		FullName:   strings.TrimSpace(in.FullName),
		Bio:        strings.TrimSpace(in.Bio),
		ProfilePic: pic,
	})
}
