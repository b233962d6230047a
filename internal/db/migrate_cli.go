package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

const migrateUsage = `Usage: guardian migrate <action> [version]

Actions:
  up                 apply all pending migrations
  down               roll back one migration
  status             show the current version and dirty flag
  to <version>       migrate up or down to version
  force <version>    set the version without running migrations (dirty recovery)
  baseline <version> record version for a database created without migrations
  help               show this message
`

// ErrMigrateUsage is returned for a missing or unknown migrate action.
var ErrMigrateUsage = errors.New("invalid migrate command")

// RunMigrateCommand runs the 'migrate' subcommand against the database at
// dbPath, writing progress to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(out, migrateUsage)
		return ErrMigrateUsage
	}
	action := args[0]
	if action == "help" {
		fmt.Fprint(out, migrateUsage)
		return nil
	}

	migFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	// migrations manage the schema, so skip NewDB's automatic upgrade
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	versionArg := func() (uint64, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("%w: %s requires a version", ErrMigrateUsage, action)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid version number %q", args[1])
		}
		return v, nil
	}

	switch action {
	case "up":
		if err := database.MigrateUp(migFS); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
	case "down":
		if err := database.MigrateDown(migFS); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
	case "to":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := database.MigrateTo(migFS, uint(v)); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", v, err)
		}
	case "force":
		v, err := versionArg()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Forcing migration version to %d\n", v)
		if err := database.MigrateForce(migFS, int(v)); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
	case "baseline":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := database.BaselineAtVersion(uint(v)); err != nil {
			return fmt.Errorf("baseline failed: %w", err)
		}
	case "status":
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n%s", action, migrateUsage)
		return ErrMigrateUsage
	}

	return printMigrateStatus(database, migFS, out)
}

func printMigrateStatus(database *DB, migFS fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := GetLatestMigrationVersion(migFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (latest %d)\n", version, latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	if dirty {
		fmt.Fprintln(out, "WARNING: a migration failed mid-execution; repair the schema then run: guardian migrate force <version>")
	}
	return nil
}
