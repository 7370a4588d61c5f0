package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/buildhub/internal/config"
	"github.com/geocoder89/buildhub/internal/domain/user"
	"github.com/geocoder89/buildhub/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap admin account when no admin row
// exists yet. Idempotent; called once at startup after migrations apply
// and before the server listens.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, log *slog.Logger) error {
	var exists bool

	err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE is_admin)`).Scan(&exists)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	password := cfg.AdminPassword
	generated := false

	if password == "" {
		password, err = randomPassword()

		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     cfg.AdminUsername,
		Email:        strings.ToLower(cfg.AdminEmail),
		PasswordHash: hash,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_admin, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		return err
	}

	log.Info("bootstrap admin created", "username", u.Username, "email", u.Email)

	// Surface the generated password exactly once, and never in prod.
	if generated && cfg.Env != "prod" {
		log.Warn("generated temporary admin password; change it after first login",
			"password", password)
	}

	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
