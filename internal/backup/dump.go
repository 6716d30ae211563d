package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ConnectionInfo identifies the MySQL server and schema a dump or restore
// operates on. The password travels via MYSQL_PWD so it never shows up in
// process listings.
type ConnectionInfo struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c ConnectionInfo) clientArgs() []string {
	args := []string{"--host", c.Host, "--user", c.User}
	if c.Port > 0 {
		args = append(args, "--port", fmt.Sprintf("%d", c.Port))
	}
	return args
}

func (c ConnectionInfo) env() []string {
	if c.Password == "" {
		return nil
	}
	return []string{"MYSQL_PWD=" + c.Password}
}

// DumpRunner wraps mysqldump, gzip and the mysql client for logical database
// backups and restores.
type DumpRunner struct {
	logger       zerolog.Logger
	mysqldumpBin string
	gzipBin      string
	gunzipBin    string
	mysqlBin     string
	timeout      time.Duration
}

func NewDumpRunner(logger zerolog.Logger, mysqldumpBin, gzipBin, gunzipBin, mysqlBin string, timeout time.Duration) *DumpRunner {
	return &DumpRunner{
		logger:       logger.With().Str("component", "dump-runner").Logger(),
		mysqldumpBin: mysqldumpBin,
		gzipBin:      gzipBin,
		gunzipBin:    gunzipBin,
		mysqlBin:     mysqlBin,
		timeout:      timeout,
	}
}

// Dump streams "mysqldump | gzip" into destPath and returns the compressed
// size. A zero-byte result is treated as a failure even when both tools exit
// cleanly; the empty file is left behind for inspection.
func (r *DumpRunner) Dump(ctx context.Context, conn ConnectionInfo, destPath string, compressionLevel int) (int64, error) {
	dumpArgs := append(conn.clientArgs(),
		"--single-transaction",
		"--routines",
		"--triggers",
		"--complete-insert",
		"--extended-insert",
		"--add-drop-table",
		"--lock-tables=false",
		conn.Database,
	)

	gzipArgs := []string{"-c"}
	if compressionLevel >= 1 && compressionLevel <= 9 {
		gzipArgs = append(gzipArgs, fmt.Sprintf("-%d", compressionLevel))
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create dump %s: %w", destPath, err)
	}

	r.logger.Info().Str("database", conn.Database).Str("dest", destPath).Msg("dumping database")

	err = runPipeline(ctx, r.timeout, f,
		Stage{Name: "mysqldump", Path: r.mysqldumpBin, Args: dumpArgs, Env: conn.env()},
		Stage{Name: "gzip", Path: r.gzipBin, Args: gzipArgs},
	)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}

	stat, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("stat dump %s: %w", destPath, err)
	}
	if stat.Size() == 0 {
		return 0, &EmptyOutputError{Path: destPath}
	}
	return stat.Size(), nil
}

// Restore streams "gunzip -c | mysql targetDB" to load a dump into an
// existing database.
func (r *DumpRunner) Restore(ctx context.Context, conn ConnectionInfo, dumpPath, targetDB string) error {
	r.logger.Info().Str("dump", dumpPath).Str("target", targetDB).Msg("restoring database")

	mysqlArgs := append(conn.clientArgs(), targetDB)

	return runPipeline(ctx, r.timeout, nil,
		Stage{Name: "gunzip", Path: r.gunzipBin, Args: []string{"-c", dumpPath}},
		Stage{Name: "mysql", Path: r.mysqlBin, Args: mysqlArgs, Env: conn.env()},
	)
}

// CreateDatabase creates the named schema. An already existing schema is
// reported as a TargetConflictError.
func (r *DumpRunner) CreateDatabase(ctx context.Context, conn ConnectionInfo, name string) error {
	args := append(conn.clientArgs(), "-e", fmt.Sprintf("CREATE DATABASE `%s`", name))

	err := runPipeline(ctx, r.timeout, nil,
		Stage{Name: "mysql", Path: r.mysqlBin, Args: args, Env: conn.env()},
	)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && strings.Contains(exitErr.Stderr, "database exists") {
		return &TargetConflictError{Target: name}
	}
	return err
}

// DropDatabase removes the named schema, used to roll back a failed
// database restore before the swap.
func (r *DumpRunner) DropDatabase(ctx context.Context, conn ConnectionInfo, name string) error {
	args := append(conn.clientArgs(), "-e", fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name))

	return runPipeline(ctx, r.timeout, nil,
		Stage{Name: "mysql", Path: r.mysqlBin, Args: args, Env: conn.env()},
	)
}

// DatabaseExists reports whether the named schema is present.
func (r *DumpRunner) DatabaseExists(ctx context.Context, conn ConnectionInfo, name string) (bool, error) {
	args := append(conn.clientArgs(), "-e", fmt.Sprintf("USE `%s`", name))

	err := runPipeline(ctx, r.timeout, nil,
		Stage{Name: "mysql", Path: r.mysqlBin, Args: args, Env: conn.env()},
	)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
