package db

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
)

// ErrMigrateUsage is returned for unknown or incomplete migrate commands.
var ErrMigrateUsage = errors.New("invalid migrate usage")

// migrateOut and migrateIn are swapped by tests.
var (
	migrateOut io.Writer = os.Stdout
	migrateIn  io.Reader = os.Stdin
)

// RunMigrateCommand dispatches "toolbox migrate <action> [args]" against the
// database at dbPath.
func RunMigrateCommand(args []string, dbPath string) error {
	if len(args) < 1 || args[0] == "help" {
		PrintMigrateHelp(migrateOut)
		if len(args) < 1 {
			return ErrMigrateUsage
		}
		return nil
	}
	action := args[0]

	migrations, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// Schema is left untouched on open; the action decides what to do.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		return handleMigrateUp(database, migrations)
	case "down":
		return handleMigrateDown(database, migrations)
	case "status":
		return handleMigrateStatus(database, migrations)
	case "version":
		if len(args) < 2 {
			return fmt.Errorf("%w: toolbox migrate version <version_number>", ErrMigrateUsage)
		}
		return handleMigrateVersion(database, migrations, args[1])
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("%w: toolbox migrate force <version_number> [--yes]", ErrMigrateUsage)
		}
		confirmed := len(args) > 2 && args[2] == "--yes"
		return handleMigrateForce(database, migrations, args[1], confirmed)
	default:
		PrintMigrateHelp(migrateOut)
		return fmt.Errorf("%w: unknown action %q", ErrMigrateUsage, action)
	}
}

func handleMigrateUp(database *DB, migrations fs.FS) error {
	log.Println("Running migrations...")
	if err := database.MigrateUp(migrations); err != nil {
		return err
	}
	v, _, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	log.Printf("✓ Database at version %d", v)
	return nil
}

func handleMigrateDown(database *DB, migrations fs.FS) error {
	log.Println("Rolling back one migration...")
	if err := database.MigrateDown(migrations); err != nil {
		return err
	}
	v, _, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	log.Printf("✓ Database at version %d", v)
	return nil
}

func handleMigrateStatus(database *DB, migrations fs.FS) error {
	status, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintln(migrateOut, "=== Migration Status ===")
	fmt.Fprintf(migrateOut, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(migrateOut, "Latest available: %d\n", status.LatestVersion)
	fmt.Fprintf(migrateOut, "Dirty state: %v\n", status.Dirty)
	switch {
	case status.Dirty:
		fmt.Fprintln(migrateOut, "⚠️  Database is dirty. Inspect it, then run: toolbox migrate force <version>")
	case status.Pending() > 0:
		fmt.Fprintf(migrateOut, "⚠️  %d migration(s) pending. Run: toolbox migrate up\n", status.Pending())
	default:
		fmt.Fprintln(migrateOut, "✓ Database is up to date")
	}
	return nil
}

func handleMigrateVersion(database *DB, migrations fs.FS, versionStr string) error {
	v, err := strconv.ParseUint(versionStr, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid version number %q", ErrMigrateUsage, versionStr)
	}
	log.Printf("Migrating to version %d...", v)
	if err := database.MigrateTo(migrations, uint(v)); err != nil {
		return err
	}
	log.Printf("✓ Migrated to version %d", v)
	return nil
}

func handleMigrateForce(database *DB, migrations fs.FS, versionStr string, confirmed bool) error {
	v, err := strconv.Atoi(versionStr)
	if err != nil {
		return fmt.Errorf("%w: invalid version number %q", ErrMigrateUsage, versionStr)
	}

	if !confirmed {
		fmt.Fprintf(migrateOut, "⚠️  WARNING: forcing migration version to %d\n", v)
		fmt.Fprintln(migrateOut, "Only use this to recover from a dirty migration state.")
		fmt.Fprint(migrateOut, "Continue? [y/N]: ")
		answer, _ := bufio.NewReader(migrateIn).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			log.Println("Aborted")
			return nil
		}
	}

	if err := database.MigrateForce(migrations, v); err != nil {
		return err
	}
	log.Printf("✓ Migration version forced to %d", v)
	return nil
}

// PrintMigrateHelp writes the migrate command usage to w.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Database Migration Commands

Usage: toolbox migrate <command> [options]

Commands:
  up                   Apply all pending migrations
  down                 Roll back one migration
  status               Show current and latest migration versions
  version <N>          Migrate up or down to version N
  force <N> [--yes]    Force the recorded version to N (recovery only)
  help                 Show this help message

Options:
  -db-path <path>      Path to database file (default: toolbox.db)
`)
}
