package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"system-mqtt/internal/config"
)

func TestFilePassword(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mode    os.FileMode
		want    string
		wantErr bool
	}{
		{
			name:    "plain password",
			content: "hunter2",
			mode:    0600,
			want:    "hunter2",
		},
		{
			name:    "trailing newline stripped",
			content: "hunter2\n",
			mode:    0600,
			want:    "hunter2",
		},
		{
			name:    "only one newline stripped",
			content: "hunter2\n\n",
			mode:    0600,
			want:    "hunter2\n",
		},
		{
			name:    "read-only owner mode accepted",
			content: "hunter2",
			mode:    0400,
			want:    "hunter2",
		},
		{
			name:    "group readable rejected",
			content: "hunter2",
			mode:    0640,
			wantErr: true,
		},
		{
			name:    "world readable rejected",
			content: "hunter2",
			mode:    0644,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "secret")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			// Chmod explicitly so the process umask cannot change the mode
			// under test.
			if err := os.Chmod(path, tt.mode); err != nil {
				t.Fatal(err)
			}

			got, err := File{Path: path}.Password("svc")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Password() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Password() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilePasswordMissingFile(t *testing.T) {
	_, err := File{Path: filepath.Join(t.TempDir(), "nope")}.Password("svc")
	if err == nil {
		t.Fatal("expected error for a missing secret file")
	}
}

func TestFilePasswordDirectory(t *testing.T) {
	_, err := File{Path: t.TempDir()}.Password("svc")
	if err == nil || !strings.Contains(err.Error(), "regular file") {
		t.Fatalf("expected regular-file error for a directory, got %v", err)
	}
}

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	kr := Keyring{}
	if err := kr.SetPassword("svc", "hunter2"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}

	got, err := kr.Password("svc")
	if err != nil {
		t.Fatalf("Password() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Password() = %q, want %q", got, "hunter2")
	}
}

func TestKeyringMissingEntry(t *testing.T) {
	keyring.MockInit()

	_, err := Keyring{}.Password("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		wantNil  bool
		wantFile bool
		wantErr  bool
	}{
		{
			name:    "anonymous when username empty",
			cfg:     &config.Config{},
			wantNil: true,
		},
		{
			name: "keyring provider",
			cfg: &config.Config{
				Username:       "svc",
				PasswordSource: config.PasswordSourceKeyring,
			},
		},
		{
			name: "file provider",
			cfg: &config.Config{
				Username:       "svc",
				PasswordSource: config.PasswordSourceSecretFile,
				SecretFile:     "/etc/system-mqtt.secret",
			},
			wantFile: true,
		},
		{
			name: "unknown source",
			cfg: &config.Config{
				Username:       "svc",
				PasswordSource: "vault",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if p != nil {
					t.Fatalf("expected nil provider, got %T", p)
				}
				return
			}
			if tt.wantFile {
				if _, ok := p.(File); !ok {
					t.Fatalf("expected File provider, got %T", p)
				}
				return
			}
			if _, ok := p.(Keyring); !ok {
				t.Fatalf("expected Keyring provider, got %T", p)
			}
		})
	}
}
