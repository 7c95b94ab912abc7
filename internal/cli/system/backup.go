package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/streakline/internal/backup"
	"github.com/julianstephens/streakline/internal/cli"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the SQLite database."`
	List    BackupListCmd    `cmd:"" help:"List database snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the database with a snapshot."`
}

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if ctx.Store.Driver() != "sqlite" {
		return nil, errors.New("backups are only supported for SQLite databases; use pg_dump for PostgreSQL")
	}
	return backup.NewManager(ctx.Store.GetConfigPath()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	info, err := mgr.Create()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("%s %s\n", cli.SuccessStyle.Render("✓ Backup created:"), info.Name())
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	list, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(list) == 0 {
		ctx.Println("No backups found.")
		ctx.Field("Directory", mgr.Dir())
		return nil
	}

	ctx.Println(cli.TitleStyle.Render(fmt.Sprintf("Backups (%d, keeping the newest %d)", len(list), backup.MaxBackups)))
	for _, b := range list {
		ctx.Printf("  %s  %s  %s\n",
			b.Timestamp.Format("2006-01-02 15:04:05"), b.Name(),
			cli.MutedStyle.Render(fmt.Sprintf("(%.1f KB)", float64(b.Size)/1024)))
	}
	ctx.Field("Directory", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	File    string `arg:"" help:"Snapshot file name or path."`
	NoInput bool   `name:"no-input" help:"Restore without asking for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path := mgr.Resolve(c.File)

	if !c.NoInput {
		ok, err := ctx.Ask("Replace the current database with this backup?",
			"Restoring from "+path+". The current database is backed up first.")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	previous, err := mgr.Restore(path)
	if previous != nil {
		ctx.Field("Previous", previous.Name())
	}
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	ctx.Println(cli.SuccessStyle.Render("✓ Database restored"))
	return nil
}
