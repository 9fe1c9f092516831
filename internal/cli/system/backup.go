package system

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"

	"github.com/julianstephens/daybook/internal/backup"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/storage/sqlite"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the SQLite database." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List snapshots, newest first."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the database with a snapshot."`
}

func manager(ctx *cli.Context) (*backup.Manager, error) {
	s, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return nil, errors.New("backups are only supported for the sqlite backend")
	}
	return backup.NewManager(s.GetConfigPath()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	m, err := manager(ctx)
	if err != nil {
		return err
	}
	path, err := m.Create(context.Background())
	if err != nil {
		return err
	}
	ctx.Printf("Backup written to: %s\n", path)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	m, err := manager(ctx)
	if err != nil {
		return err
	}
	list, err := m.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Printf("No backups in %s\n", m.Dir())
		return nil
	}
	table := uitable.New()
	table.AddRow("#", "TAKEN", "SIZE", "PATH")
	for i, b := range list {
		table.AddRow(i+1, b.Timestamp.Local().Format("2006-01-02 15:04:05"), humanize.Bytes(uint64(b.Size)), b.Path)
	}
	ctx.Println(table)
	return nil
}

type BackupRestoreCmd struct {
	Backup string `arg:"" help:"Snapshot path, or its number in 'backup list'."`
	Yes    bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	m, err := manager(ctx)
	if err != nil {
		return err
	}
	path, err := c.resolve(m)
	if err != nil {
		return err
	}
	ok, err := ctx.Confirm(c.Yes, "Restore "+path+"?", "The current database is snapshotted first.")
	if err != nil {
		return err
	}
	if !ok {
		ctx.Println("Cancelled.")
		return nil
	}
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	previous, err := m.Restore(context.Background(), path)
	if err != nil {
		return err
	}
	if previous != "" {
		ctx.Printf("Previous database saved to: %s\n", previous)
	}
	ctx.Printf("Restored from: %s\n", path)
	return nil
}

func (c *BackupRestoreCmd) resolve(m *backup.Manager) (string, error) {
	n, err := strconv.Atoi(c.Backup)
	if err != nil {
		return c.Backup, nil
	}
	list, err := m.List()
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(list) {
		return "", fmt.Errorf("no backup #%d (have %d)", n, len(list))
	}
	return list[n-1].Path, nil
}
