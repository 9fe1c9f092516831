package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gosuri/uitable"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/migration"
	"github.com/julianstephens/daybook/internal/storage"
)

type InitCmd struct {
	Force         bool   `help:"Delete an existing SQLite database before initialization."`
	Source        string `help:"Database path or connection string to copy the owner's documents from."`
	SourceBackend string `help:"Backend of --source." enum:"auto,sqlite,postgres,disk" default:"auto"`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	lc, hasSchema := ctx.Store.(cli.Lifecycle)

	if c.Force && hasSchema {
		if err := c.reset(ctx, lc); err != nil {
			return err
		}
	}
	if hasSchema {
		if err := lc.Init(); err != nil {
			return err
		}
		ctx.Printf("Initialized daybook storage at: %s\n", lc.GetConfigPath())
	} else {
		ctx.Println("Initialized daybook storage.")
	}

	if c.Source == "" {
		return nil
	}
	ctx.Printf("Copying documents of %s from: %s\n", ctx.Owner, keyring.Mask(c.Source))
	n, err := c.copyFrom(ctx)
	if err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}
	ctx.Printf("Copied %d document(s).\n", n)
	return nil
}

func (c *InitCmd) reset(ctx *cli.Context, lc cli.Lifecycle) error {
	dbPath := lc.GetConfigPath()
	if c.Source != "" {
		absDB, err1 := filepath.Abs(dbPath)
		absSrc, err2 := filepath.Abs(cli.ExpandHome(c.Source))
		if err1 == nil && err2 == nil && absDB == absSrc {
			return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
		}
	}
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to access existing database: %w", err)
	}
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	if err := os.Remove(dbPath); err != nil {
		return fmt.Errorf("failed to delete existing database: %w", err)
	}
	ctx.Printf("Deleted existing database at: %s\n", dbPath)
	return nil
}

func (c *InitCmd) copyFrom(ctx *cli.Context) (int, error) {
	src, err := cli.OpenStore(c.SourceBackend, c.Source, nil)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	if lc, ok := src.(cli.Lifecycle); ok {
		if err := lc.Load(); err != nil {
			return 0, fmt.Errorf("failed to load source database: %w", err)
		}
	}
	return CopyOwner(context.Background(), src, ctx.Store, ctx.Owner)
}

// CopyOwner overwrites dst with every document ownerID has in src.
func CopyOwner(ctx context.Context, src, dst storage.Store, ownerID string) (int, error) {
	n := 0
	for _, coll := range storage.OwnerCollections(ownerID) {
		entries, err := src.Query(ctx, coll, storage.Query{})
		if err != nil {
			return n, err
		}
		for _, e := range entries {
			if err := dst.Set(ctx, coll, e.Key, e.Doc, false); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

type MigrateCmd struct {
	Status bool `help:"List applied and pending migrations without applying any."`
}

type migrationStatus interface {
	MigrationStatus(ctx context.Context) ([]migration.State, error)
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	lc, ok := ctx.Store.(cli.Lifecycle)
	if !ok {
		ctx.Println("This backend has no schema to migrate.")
		return nil
	}
	if c.Status {
		return c.printStatus(ctx)
	}
	if err := lc.Init(); err != nil {
		return err
	}
	ctx.Printf("Schema of %s is up to date.\n", lc.GetConfigPath())
	return nil
}

func (c *MigrateCmd) printStatus(ctx *cli.Context) error {
	ms, ok := ctx.Store.(migrationStatus)
	if !ok {
		ctx.Println("This backend does not report migration status.")
		return nil
	}
	if lc, ok := ctx.Store.(cli.Lifecycle); ok {
		// Status needs an open connection but must not apply anything.
		if err := lc.Load(); err != nil && !errors.Is(err, migration.ErrSchemaMissing) {
			return err
		}
	}
	states, err := ms.MigrationStatus(context.Background())
	if err != nil {
		return err
	}
	table := uitable.New()
	table.AddRow("MIGRATION", "APPLIED")
	for _, st := range states {
		applied := "pending"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.Local().Format("2006-01-02 15:04:05")
		}
		table.AddRow(st.String(), applied)
	}
	ctx.Println(table)
	return nil
}
