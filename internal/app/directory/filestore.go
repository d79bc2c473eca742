/*
Package directory implements the client side of the external credential store.

This file defines the FileStore, a JSON-file-backed credential store. Accounts
are held in memory, passwords are stored as bcrypt hashes, and every mutation
rewrites the backing file atomically (write to a temporary file, then rename).
*/
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"linechat/internal/pkg/logx"
)

// fileAccount is the on-disk representation of one account.
type fileAccount struct {
	// UserName is the account's unique login name.
	UserName string `json:"username"`

	// PasswordHash is the bcrypt hash of the account password. An empty hash
	// marks an open account: it accepts any password until one is set.
	PasswordHash string `json:"password_hash,omitempty"`

	// Domain is the directory domain the account belongs to.
	Domain string `json:"domain,omitempty"`

	// Profile is the persisted profile blob round-tripped on log-on.
	Profile Profile `json:"profile,omitempty"`

	// CreatedAt records when the account was created.
	CreatedAt time.Time `json:"created_at"`

	// LastLogOnAt records the most recent successful log-on, if any.
	LastLogOnAt *time.Time `json:"last_logon_at,omitempty"`
}

// FileStore is a credential store backed by a single JSON file.
type FileStore struct {
	path     string
	domain   string
	mu       sync.Mutex
	accounts map[string]*fileAccount
	logger   zerolog.Logger
}

// NewFileStore loads (or initializes) the account file at path. Accounts
// without a domain report the given default domain on log-on.
func NewFileStore(path, domain string) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		domain:   domain,
		accounts: make(map[string]*fileAccount),
		logger: logx.Logger().With().
			Str("component", "filestore").
			Str("path", path).
			Logger(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Msg("Account file does not exist yet, starting empty.")
			return s, nil
		}
		return nil, fmt.Errorf("failed to read account file %s: %w", path, err)
	}

	var accounts []*fileAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse account file %s: %w", path, err)
	}

	for _, acct := range accounts {
		s.accounts[acct.UserName] = acct
	}

	s.logger.Info().Int("accounts", len(s.accounts)).Msg("Account file loaded.")
	return s, nil
}

// LogOn implements Store. Unknown accounts and password mismatches yield an
// unauthorized result, not an error.
func (s *FileStore) LogOn(ctx context.Context, userName, password string, profile Profile) (LogOnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	denied := LogOnResult{
		Authorized: false,
		UserName:   userName,
		Password:   password,
		Profile:    profile,
	}

	acct, ok := s.accounts[userName]
	if !ok {
		s.logger.Warn().Str("user_name", userName).Msg("Log-on for unknown account denied.")
		return denied, nil
	}

	// An account created without a password accepts any password until one is set.
	if acct.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
			s.logger.Warn().Str("user_name", userName).Msg("Log-on password mismatch.")
			return denied, nil
		}
	}

	// Profile data supplied with the request wins over what the store holds.
	if acct.Profile == nil {
		acct.Profile = Profile{}
	}
	for k, v := range profile {
		acct.Profile[k] = v
	}

	now := time.Now().UTC()
	acct.LastLogOnAt = &now

	if err := s.saveLocked(); err != nil {
		return denied, err
	}

	domain := acct.Domain
	if domain == "" {
		domain = s.domain
	}

	return LogOnResult{
		Authorized: true,
		UserName:   userName,
		Domain:     domain,
		Password:   password,
		Profile:    acct.Profile.Clone(),
	}, nil
}

// LogOff implements Store. Unknown accounts are a no-op.
func (s *FileStore) LogOff(ctx context.Context, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userName]; !ok {
		return nil
	}

	s.logger.Debug().Str("user_name", userName).Msg("Account logged off.")
	return nil
}

// Create implements Store.
func (s *FileStore) Create(ctx context.Context, userName, password string, hasPassword bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userName]; ok {
		return ErrAccountExists
	}

	acct := &fileAccount{
		UserName:  userName,
		Profile:   Profile{},
		CreatedAt: time.Now().UTC(),
	}

	if hasPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", userName, err)
		}
		acct.PasswordHash = string(hash)
	}

	s.accounts[userName] = acct

	if err := s.saveLocked(); err != nil {
		delete(s.accounts, userName)
		return err
	}

	s.logger.Info().Str("user_name", userName).Bool("has_password", hasPassword).Msg("Account created.")
	return nil
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, userName, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userName]
	if !ok {
		return ErrAccountNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", userName, err)
	}

	previous := acct.PasswordHash
	acct.PasswordHash = string(hash)

	if err := s.saveLocked(); err != nil {
		acct.PasswordHash = previous
		return err
	}

	s.logger.Info().Str("user_name", userName).Msg("Account password updated.")
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userName]
	if !ok {
		return ErrAccountNotFound
	}

	delete(s.accounts, userName)

	if err := s.saveLocked(); err != nil {
		s.accounts[userName] = acct
		return err
	}

	s.logger.Info().Str("user_name", userName).Msg("Account deleted.")
	return nil
}

// Close implements Store. The file store holds no open resources.
func (s *FileStore) Close() {}

// saveLocked rewrites the backing file atomically. Callers must hold mu.
func (s *FileStore) saveLocked() error {
	accounts := make([]*fileAccount, 0, len(s.accounts))
	for _, acct := range s.accounts {
		accounts = append(accounts, acct)
	}

	// Stable ordering keeps the file diffable.
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].UserName < accounts[j].UserName
	})

	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".users-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary account file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temporary account file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temporary account file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace account file: %w", err)
	}

	return nil
}
