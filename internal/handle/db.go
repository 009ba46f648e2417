package handle

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rpcsh/rpcsh/internal/value"
)

// okMarker is returned for statements that produce no result rows.
const okMarker = "OK"

// DBConfig holds connection parameters for a database handle.
type DBConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// DBHandle is a named connection to a relational database. It repairs
// itself on a transient disconnect: one automatic reconnect and retry,
// preserving the registry name. Driver failures are surfaced as textual
// "Error: ..." values rather than errors, by contract: the console's
// only failure channel for database calls is the result payload.
type DBHandle struct {
	name string
	cfg  DBConfig
	db   *sql.DB

	// conn is the handle's single open cursor. Exactly one underlying
	// transport exists per handle, so autocommit bracketing and manual
	// transactions always land on the same connection.
	conn   *sql.Conn
	open   func(dsn string) (*sql.DB, error)
	logger *slog.Logger
}

// NewDB creates an unconnected database handle.
func NewDB(cfg DBConfig, logger *slog.Logger) *DBHandle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DBHandle{
		cfg:    cfg,
		open:   func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) },
		logger: logger,
	}
}

func (h *DBHandle) Name() string        { return h.name }
func (h *DBHandle) SetName(name string) { h.name = name }
func (h *DBHandle) Kind() Kind          { return KindDB }

func (h *DBHandle) Target() string {
	return fmt.Sprintf("%s:%d/%s", h.cfg.Host, h.cfg.Port, h.cfg.Database)
}

// Connect establishes the underlying transport.
func (h *DBHandle) Connect(ctx context.Context) error {
	h.logger.Debug("connecting to database",
		slog.String("host", h.cfg.Host),
		slog.String("database", h.cfg.Database))

	db, err := h.open(buildDSN(h.cfg))
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	h.db = db
	h.conn = conn
	return nil
}

// buildDSN constructs a key=value connection string.
func buildDSN(cfg DBConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=disable", host, port, cfg.Database)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// Query runs one statement. With autocommit set it is bracketed by an
// implicit BEGIN/COMMIT pair. Statements without a result set yield the
// literal "OK"; rows come back as an array of one struct per row with
// members in column order.
func (h *DBHandle) Query(ctx context.Context, stmt string, autocommit bool) value.Value {
	res, err := h.runRepaired(ctx, stmt, autocommit)
	if err != nil {
		return value.String("Error: " + err.Error())
	}
	return res
}

// Raw runs one statement verbatim with no autocommit bracketing. It
// backs the console's unchecked-command escape hatch.
func (h *DBHandle) Raw(ctx context.Context, stmt string) value.Value {
	res, err := h.runRepaired(ctx, stmt, false)
	if err != nil {
		return value.String("Error: " + err.Error())
	}
	return res
}

// Commit issues an explicit COMMIT. With autocommit on it is a no-op:
// every statement already committed itself.
func (h *DBHandle) Commit(ctx context.Context, autocommit bool) value.Value {
	if autocommit {
		return value.String(okMarker)
	}
	return h.Raw(ctx, "COMMIT")
}

// Rollback issues an explicit ROLLBACK, a no-op under autocommit.
func (h *DBHandle) Rollback(ctx context.Context, autocommit bool) value.Value {
	if autocommit {
		return value.String(okMarker)
	}
	return h.Raw(ctx, "ROLLBACK")
}

// runRepaired executes a statement, reconnecting and retrying exactly
// once when the driver reports a disconnect mid-operation.
func (h *DBHandle) runRepaired(ctx context.Context, stmt string, autocommit bool) (value.Value, error) {
	if h.conn == nil {
		return nil, errors.New("not connected")
	}
	res, err := h.run(ctx, stmt, autocommit)
	if !isDisconnect(err) {
		return res, err
	}

	h.logger.Debug("database connection lost, reconnecting",
		slog.String("handle", h.name))
	_ = h.conn.Close()
	_ = h.db.Close()
	h.conn, h.db = nil, nil
	if cerr := h.Connect(ctx); cerr != nil {
		return nil, fmt.Errorf("reconnect failed: %w", cerr)
	}
	return h.run(ctx, stmt, autocommit)
}

func (h *DBHandle) run(ctx context.Context, stmt string, autocommit bool) (value.Value, error) {
	if autocommit {
		if _, err := h.conn.ExecContext(ctx, "BEGIN"); err != nil {
			return nil, err
		}
	}
	res, err := h.execute(ctx, stmt)
	if err != nil {
		if autocommit {
			// The implicit transaction must not stay open in its
			// aborted state, or every later statement on this
			// connection fails too. Best-effort: on a dead connection
			// the reconnect discards the transaction anyway.
			if _, rbErr := h.conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
				h.logger.Debug("rollback after failed statement",
					slog.String("error", rbErr.Error()))
			}
		}
		return nil, err
	}
	if autocommit {
		if _, err := h.conn.ExecContext(ctx, "COMMIT"); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (h *DBHandle) execute(ctx context.Context, stmt string) (value.Value, error) {
	if !returnsRows(stmt) {
		if _, err := h.conn.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
		return value.String(okMarker), nil
	}

	rows, err := h.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := value.Array{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(value.Struct, 0, len(cols))
		for i, col := range cols {
			row = append(row, value.Member{Key: col, Value: value.FromAny(vals[i])})
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "VALUES", "WITH", "EXPLAIN", "TABLE":
		return true
	}
	return false
}

// isDisconnect reports whether err is a disconnect-class driver error
// that warrants a single reconnect and retry.
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"server has gone away",
		"connection reset",
		"broken pipe",
		"conn closed",
		"unexpected eof",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
