package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"

	"system-mqtt/internal/config"
)

// KeyringService is the service name entries are filed under in the OS
// keyring.
const KeyringService = "system-mqtt"

// ErrNotFound reports that no password is stored for the username.
var ErrNotFound = errors.New("password not found")

// Provider hands out the broker password for a username.
type Provider interface {
	Password(username string) (string, error)
}

// Keyring reads and stores passwords in the OS keyring.
type Keyring struct{}

// Password implements Provider.
func (Keyring) Password(username string) (string, error) {
	secret, err := keyring.Get(KeyringService, username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for user %q: run `system-mqtt set-password` first", ErrNotFound, username)
		}
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return secret, nil
}

// SetPassword stores the password for a username.
func (Keyring) SetPassword(username, password string) error {
	if err := keyring.Set(KeyringService, username, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	return nil
}

// File reads the password from a file on disk. The file must be a regular
// file, owned by the daemon's uid and unreadable by group and others;
// anything looser leaks the broker credential to local users.
type File struct {
	Path string
}

// Password implements Provider.
func (f File) Password(username string) (string, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret file %s is not a regular file", f.Path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("secret file %s has mode %04o, tighten it to 0600", f.Path, perm)
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok && int(sys.Uid) != os.Getuid() {
		return "", fmt.Errorf("secret file %s is owned by uid %d, expected %d", f.Path, sys.Uid, os.Getuid())
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	// Files written with an editor or echo carry a trailing newline that is
	// not part of the password.
	return strings.TrimSuffix(string(data), "\n"), nil
}

// FromConfig selects the provider the configuration asks for. A nil provider
// with a nil error means the daemon connects anonymously.
func FromConfig(cfg *config.Config) (Provider, error) {
	if cfg.Username == "" {
		return nil, nil
	}
	switch cfg.PasswordSource {
	case config.PasswordSourceKeyring:
		return Keyring{}, nil
	case config.PasswordSourceSecretFile:
		return File{Path: cfg.SecretFile}, nil
	default:
		return nil, fmt.Errorf("unknown password_source %q", cfg.PasswordSource)
	}
}
