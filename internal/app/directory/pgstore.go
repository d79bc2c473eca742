/*
Package directory implements the client side of the external credential store.

This file defines the PGStore, a PostgreSQL-backed credential store over a
pgx connection pool. The accounts table is created by the embedded goose
migrations in internal/app/db.
*/
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"linechat/internal/app/db"
	"linechat/internal/pkg/logx"
)

// PGStore is a credential store backed by PostgreSQL.
type PGStore struct {
	pool   *pgxpool.Pool
	domain string
	logger zerolog.Logger
}

// NewPGStore wraps an existing connection pool. Accounts without a domain
// report the given default domain on log-on.
func NewPGStore(pool *pgxpool.Pool, domain string) *PGStore {
	return &PGStore{
		pool:   pool,
		domain: domain,
		logger: logx.Logger().With().Str("component", "pgstore").Logger(),
	}
}

// LogOn implements Store. Unknown accounts and password mismatches yield an
// unauthorized result, not an error.
func (s *PGStore) LogOn(ctx context.Context, userName, password string, profile Profile) (LogOnResult, error) {
	denied := LogOnResult{
		Authorized: false,
		UserName:   userName,
		Password:   password,
		Profile:    profile,
	}

	var (
		passwordHash string
		domain       string
		profileRaw   []byte
	)

	row := s.pool.QueryRow(ctx,
		`SELECT password_hash, domain, profile FROM accounts WHERE username = $1`,
		userName)

	if err := row.Scan(&passwordHash, &domain, &profileRaw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().Str("user_name", userName).Msg("Log-on for unknown account denied.")
			return denied, nil
		}
		return denied, fmt.Errorf("failed to fetch account %s: %w", userName, err)
	}

	// An account created without a password accepts any password until one is set.
	if passwordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
			s.logger.Warn().Str("user_name", userName).Msg("Log-on password mismatch.")
			return denied, nil
		}
	}

	stored := Profile{}
	if len(profileRaw) > 0 {
		if err := json.Unmarshal(profileRaw, &stored); err != nil {
			return denied, fmt.Errorf("failed to decode profile for %s: %w", userName, err)
		}
	}

	// Profile data supplied with the request wins over what the store holds.
	for k, v := range profile {
		stored[k] = v
	}

	merged, err := json.Marshal(stored)
	if err != nil {
		return denied, fmt.Errorf("failed to encode profile for %s: %w", userName, err)
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE accounts SET profile = $2, last_logon_at = now() WHERE username = $1`,
		userName, merged); err != nil {
		return denied, fmt.Errorf("failed to update account %s on log-on: %w", userName, err)
	}

	if domain == "" {
		domain = s.domain
	}

	return LogOnResult{
		Authorized: true,
		UserName:   userName,
		Domain:     domain,
		Password:   password,
		Profile:    stored,
	}, nil
}

// LogOff implements Store. Unknown accounts are a no-op.
func (s *PGStore) LogOff(ctx context.Context, userName string) error {
	s.logger.Debug().Str("user_name", userName).Msg("Account logged off.")
	return nil
}

// Create implements Store.
func (s *PGStore) Create(ctx context.Context, userName, password string, hasPassword bool) error {
	passwordHash := ""
	if hasPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", userName, err)
		}
		passwordHash = string(hash)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES ($1, $2)`,
		userName, passwordHash)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account %s: %w", userName, err)
	}

	s.logger.Info().Str("user_name", userName).Bool("has_password", hasPassword).Msg("Account created.")
	return nil
}

// Update implements Store.
func (s *PGStore) Update(ctx context.Context, userName, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", userName, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE username = $1`,
		userName, string(hash))

	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", userName, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	s.logger.Info().Str("user_name", userName).Msg("Account password updated.")
	return nil
}

// Delete implements Store.
func (s *PGStore) Delete(ctx context.Context, userName string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE username = $1`, userName)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", userName, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	s.logger.Info().Str("user_name", userName).Msg("Account deleted.")
	return nil
}

// Close implements Store.
func (s *PGStore) Close() {
	s.pool.Close()
}
