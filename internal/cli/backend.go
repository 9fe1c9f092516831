package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/disk"
	"github.com/julianstephens/daybook/internal/storage/postgres"
	"github.com/julianstephens/daybook/internal/storage/sqlite"
)

const (
	BackendAuto     = "auto"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDisk     = "disk"
)

// DetectBackend resolves "auto" from the shape of config.
func DetectBackend(backend, config string) string {
	if backend != "" && backend != BackendAuto {
		return backend
	}
	if isPostgres(config) {
		return BackendPostgres
	}
	return BackendSQLite
}

func isPostgres(config string) bool {
	return postgres.IsConnString(config) || strings.Contains(config, "host=")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// OpenStore builds the store named by backend and config. It does not
// connect; call Init or Load on stores that implement Lifecycle.
func OpenStore(backend, config string, vault *keyring.Vault) (storage.Store, error) {
	switch DetectBackend(backend, config) {
	case BackendPostgres:
		connStr, err := postgresConnString(config, vault)
		if err != nil {
			return nil, err
		}
		return postgres.New(connStr), nil
	case BackendDisk:
		return disk.New(ExpandHome(config))
	case BackendSQLite:
		return sqlite.NewStore(ExpandHome(config)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// postgresConnString prefers an explicit connection string, which must not
// carry a password, and falls back to the keyring.
func postgresConnString(config string, vault *keyring.Vault) (string, error) {
	if isPostgres(config) {
		if err := postgres.ValidateConnString(config); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return "", fmt.Errorf("%w: store it with 'daybook keyring set' or use PGPASSWORD or .pgpass", err)
			}
			return "", err
		}
		return config, nil
	}
	if vault == nil {
		return "", errors.New("no PostgreSQL connection string given")
	}
	connStr, err := vault.ConnString()
	if errors.Is(err, keyring.ErrNotFound) {
		return "", errors.New("no PostgreSQL connection string given and none stored in the keyring, run 'daybook keyring set'")
	}
	return connStr, err
}

// ConfigDir is where logs live for a given store config.
func ConfigDir(backend, config string) string {
	switch DetectBackend(backend, config) {
	case BackendSQLite:
		return filepath.Dir(ExpandHome(config))
	case BackendDisk:
		return ExpandHome(config)
	default:
		return ExpandHome("~/.config/daybook")
	}
}
