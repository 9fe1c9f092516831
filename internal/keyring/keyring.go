// Package keyring keeps backend secrets in the OS credential store.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/daybook/internal/constants"
)

var (
	ErrNotFound    = errors.New("no secret stored in keyring")
	ErrUnavailable = errors.New("OS keyring is not available")
)

// probeAccount is read by Available; it is never written.
const probeAccount = "availability-probe"

// Vault reads and writes secrets under one keyring service name.
type Vault struct {
	service string
}

// New returns a Vault for service; an empty name means the application name.
func New(service string) *Vault {
	if service == "" {
		service = constants.AppName
	}
	return &Vault{service: service}
}

func (v *Vault) Get(account string) (string, error) {
	secret, err := gokeyring.Get(v.service, account)
	switch {
	case err == nil:
		return secret, nil
	case errors.Is(err, gokeyring.ErrNotFound):
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (v *Vault) Set(account, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret cannot be empty")
	}
	if err := gokeyring.Set(v.service, account, secret); err != nil {
		return fmt.Errorf("store %s in keyring: %w", account, err)
	}
	return nil
}

func (v *Vault) Delete(account string) error {
	err := gokeyring.Delete(v.service, account)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gokeyring.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("delete %s from keyring: %w", account, err)
	}
}

// Available probes the keyring with a read. A missing entry still counts as
// available.
func (v *Vault) Available() bool {
	_, err := gokeyring.Get(v.service, probeAccount)
	return err == nil || errors.Is(err, gokeyring.ErrNotFound)
}

// ConnString returns the stored database connection string.
func (v *Vault) ConnString() (string, error) {
	return v.Get(constants.DefaultKeyringUser)
}

func (v *Vault) SetConnString(connStr string) error {
	return v.Set(constants.DefaultKeyringUser, connStr)
}

func (v *Vault) DeleteConnString() error {
	return v.Delete(constants.DefaultKeyringUser)
}

// Mask hides the password of a connection string for display.
func Mask(connStr string) string {
	scheme, rest, ok := strings.Cut(connStr, "://")
	if ok {
		creds, host, hasAt := strings.Cut(rest, "@")
		if !hasAt {
			return connStr
		}
		user, _, hasPass := strings.Cut(creds, ":")
		if !hasPass {
			return connStr
		}
		return scheme + "://" + user + ":****@" + host
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if k, _, found := strings.Cut(f, "="); found && strings.EqualFold(k, "password") {
			fields[i] = k + "=****"
		}
	}
	return strings.Join(fields, " ")
}
