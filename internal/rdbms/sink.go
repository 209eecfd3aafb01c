package rdbms

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cdr.dev/slog/v3"
	"github.com/jmoiron/sqlx"
	"golang.org/x/xerrors"

	// Registered drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config locates the backing database and decides its partitioning.
type Config struct {
	Driver    string
	URL       string
	User      string
	Password  string
	MachineID int
	// MultiTenant gives each worker thread its own table.
	MultiTenant bool
	ThreadCount int
}

// DSN returns the connection string for Driver. Credentials are folded into
// postgres URLs; sqlite takes URL as a file name or ":memory:".
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		if c.User == "" || !strings.Contains(c.URL, "://") {
			return c.URL, nil
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			return "", xerrors.Errorf("parse database url: %w", err)
		}
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
		return u.String(), nil
	case DriverSQLite:
		return c.URL, nil
	default:
		return "", xerrors.Errorf("unsupported driver %q", c.Driver)
	}
}

// Sink appends write records to tupdate<machine>c<shard> tables.
type Sink struct {
	logger slog.Logger
	db     *sqlx.DB
	cfg    Config
	ddl    dialect
	shards int
}

// Open connects to the configured database.
func Open(ctx context.Context, logger slog.Logger, cfg Config) (*Sink, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		return nil, xerrors.Errorf("connect %s: %w", cfg.Driver, err)
	}
	return New(logger, db, cfg)
}

// New wraps an open connection.
func New(logger slog.Logger, db *sqlx.DB, cfg Config) (*Sink, error) {
	ddl, ok := dialects[cfg.Driver]
	if !ok {
		return nil, xerrors.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.Driver == DriverSQLite {
		// One connection keeps an in-memory database alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	shards := 1
	if cfg.MultiTenant {
		shards = max(cfg.ThreadCount, 1)
	}
	return &Sink{logger: logger, db: db, cfg: cfg, ddl: ddl, shards: shards}, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

// Shards returns the number of tables the sink writes to.
func (s *Sink) Shards() int {
	return s.shards
}

// ShardFor maps a worker thread to its table: always 1 for a single tenant,
// threadID+1 for multi tenant.
func (s *Sink) ShardFor(threadID int64) int {
	if !s.cfg.MultiTenant {
		return 1
	}
	return int(threadID) + 1
}

// Provision drops and recreates every table. Drop failures are expected on
// a fresh database and ignored.
func (s *Sink) Provision(ctx context.Context) error {
	for shard := 1; shard <= s.shards; shard++ {
		table := TableName(s.cfg.MachineID, shard)
		_, _ = s.db.ExecContext(ctx, "DROP TABLE "+table)
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.ddl.createTable, table)); err != nil {
			return xerrors.Errorf("create table %s: %w", table, err)
		}
	}
	s.logger.Debug(ctx, "tables provisioned",
		slog.F("machine_id", s.cfg.MachineID),
		slog.F("tables", s.shards),
	)
	return nil
}

// InsertBatch appends recs in one transaction.
func (s *Sink) InsertBatch(ctx context.Context, recs []model.LogRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmts := make(map[int]*sqlx.Stmt)
	defer func() {
		for _, stmt := range stmts {
			_ = stmt.Close()
		}
	}()
	for _, rec := range recs {
		shard := s.ShardFor(rec.ThreadID)
		stmt, ok := stmts[shard]
		if !ok {
			table := TableName(s.cfg.MachineID, shard)
			stmt, err = tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf(insertRow, table)))
			if err != nil {
				return xerrors.Errorf("prepare insert into %s: %w", table, err)
			}
			stmts[shard] = stmt
		}
		if _, err = stmt.ExecContext(ctx, rowArgs(rec)...); err != nil {
			return xerrors.Errorf("insert into shard %d: %w", shard, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rowArgs(rec model.LogRecord) []any {
	return []any{rec.OpType, rec.SeqID, rec.ThreadID, rec.RID, rec.StartTime, rec.EndTime, rec.Value, rec.UpdateType}
}

// BuildIndexes creates the lookup indexes once the bulk load is done and
// refreshes planner statistics.
func (s *Sink) BuildIndexes(ctx context.Context) error {
	for shard := 1; shard <= s.shards; shard++ {
		table := TableName(s.cfg.MachineID, shard)
		for _, col := range indexedColumns {
			name := indexName(table, col)
			_, _ = s.db.ExecContext(ctx, "DROP INDEX "+name)
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, col)); err != nil {
				return xerrors.Errorf("create index %s: %w", name, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, "ANALYZE "+table); err != nil {
			return xerrors.Errorf("analyze %s: %w", table, err)
		}
		rows, err := s.Count(ctx, shard)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "table indexed", slog.F("table", table), slog.F("rows", rows))
	}
	return nil
}

// Count returns the number of rows in one shard.
func (s *Sink) Count(ctx context.Context, shard int) (int64, error) {
	var n int64
	table := TableName(s.cfg.MachineID, shard)
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, xerrors.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
