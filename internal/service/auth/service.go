package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"voxedit/internal/lib/logger/sl"
	"voxedit/internal/models"
	"voxedit/internal/service"
)

// Auth issues access tokens. The editing backend is
// single-operator, so only the root account exists.
type Auth struct {
	log          *slog.Logger
	jwtMaker     jwtMaker
	rootPassHash []byte
	tokenTTL     time.Duration
}

type jwtMaker interface {
	NewToken(editor models.Editor, duration time.Duration) (string, error)
}

// New returns new instance of authentication service
func New(
	log *slog.Logger,
	jwtMaker jwtMaker,
	rootPassHash []byte,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		log:          log,
		jwtMaker:     jwtMaker,
		rootPassHash: rootPassHash,
		tokenTTL:     tokenTTL,
	}
}

// Login checks the credentials and returns an access token.
//
// If password is incorrect or login is unknown, returns error.
func (a *Auth) Login(_ context.Context, login string, password string) (string, error) {
	const op = "Auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("editorname", login),
	)

	if login != models.RootLogin {
		log.Warn("unknown login")

		return "", fmt.Errorf("%s: %w", op, service.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword(a.rootPassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, service.ErrInvalidCredentials)
	}

	log.Info("root logged in successfully")

	token, err := a.jwtMaker.NewToken(models.Editor{ID: models.RootID, Login: models.RootLogin}, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}
