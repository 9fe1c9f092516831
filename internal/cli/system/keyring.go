package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store the PostgreSQL connection string in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show the stored connection string with its password masked."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	Status KeyringStatusCmd `cmd:"" help:"Check keyring availability." default:"1"`
}

type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string."`
}

func (c *KeyringSetCmd) Run(ctx *cli.Context) error {
	err := postgres.ValidateConnString(c.ConnectionString)
	switch {
	case errors.Is(err, postgres.ErrEmbeddedCredentials):
		ctx.Println("Warning: the connection string contains a password; it is kept only in the OS keyring.")
	case err != nil:
		return fmt.Errorf("invalid connection string: %w", err)
	}
	if err := keyring.New("").SetConnString(c.ConnectionString); err != nil {
		return err
	}
	ctx.Println("Connection string stored in the OS keyring.")
	ctx.Println("Run daybook with --backend postgres to use it.")
	return nil
}

type KeyringGetCmd struct{}

func (c *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.New("").ConnString()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no connection string in keyring, use 'daybook keyring set' to store one")
	}
	if err != nil {
		return err
	}
	ctx.Println(keyring.Mask(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (c *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	err := keyring.New("").DeleteConnString()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no connection string in keyring")
	}
	if err != nil {
		return err
	}
	ctx.Println("Connection string deleted from the OS keyring.")
	return nil
}

type KeyringStatusCmd struct{}

func (c *KeyringStatusCmd) Run(ctx *cli.Context) error {
	v := keyring.New("")
	if !v.Available() {
		return keyring.ErrUnavailable
	}
	ctx.Println("OS keyring is available.")
	if _, err := v.ConnString(); err == nil {
		ctx.Println("A connection string is stored.")
	} else if errors.Is(err, keyring.ErrNotFound) {
		ctx.Println("No connection string is stored.")
	}
	return nil
}
