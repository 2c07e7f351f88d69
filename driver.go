package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
)

// define all package level errors here
var (
	ErrDuckStmtClosed      = errors.New("duckdb: statement closed")
	ErrDuckConnClosed      = errors.New("duckdb: connection closed")
	ErrDuckRowsClosed      = errors.New("duckdb: rows closed")
	ErrDuckTxDone          = errors.New("duckdb: transaction done")
	ErrDuckNoLastInsertID  = errors.New("duckdb: LastInsertId is not supported")
	ErrDuckNamedParameters = errors.New("duckdb: named parameters are not supported")
)

type duckdbDriver struct{}

type duckdbConn struct {
	db      EngineDatabase
	session EngineSession

	mu     sync.Mutex
	closed bool
}

type duckdbStmt struct {
	conn      *duckdbConn
	stmt      EngineStatement
	numInputs int
	closed    bool
}

type duckdbRows struct {
	res     EngineResult
	stmt    EngineStatement // owned when rows came from a one-shot query
	columns []string

	closed bool
}

type duckdbSQLResult struct {
	rowsAffected int64
}

type duckdbTx struct {
	conn *duckdbConn
	done bool
}

// register driver
func init() {
	sql.Register("duckdb", &duckdbDriver{})
}

// Implement sql.Driver methods
func (d *duckdbDriver) Open(dsn string) (driver.Conn, error) {
	c, err := NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// --- Connector Pattern ---

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithOpener overrides the engine opener, mainly for tests.
func WithOpener(open EngineOpener) ConnectorOption {
	return func(c *Connector) {
		c.open = open
	}
}

// WithExtensions overrides the extension list loaded at open.
func WithExtensions(names []string) ConnectorOption {
	return func(c *Connector) {
		c.extensions = names
	}
}

// Connector implements driver.Connector for programmatic configuration.
type Connector struct {
	path       string
	open       EngineOpener
	extensions []string
}

// NewConnector creates a Connector from a DSN of the form
// <path>[?extensions=0|1]. An empty path or ":memory:" opens an in-memory
// database. extensions=0 skips the default extension load.
func NewConnector(dsn string, opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{open: OpenEngine, extensions: DefaultExtensions}
	path := dsn
	if qMark := strings.IndexByte(dsn, '?'); qMark >= 0 {
		path = dsn[:qMark]
		vals, err := url.ParseQuery(dsn[qMark+1:])
		if err != nil {
			return nil, err
		}
		if v := vals.Get("extensions"); v == "0" || strings.EqualFold(v, "false") {
			c.extensions = nil
		}
	}
	if path == MemoryName {
		path = ""
	}
	c.path = path
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect implements driver.Connector.
func (c *Connector) Connect(_ context.Context) (driver.Conn, error) {
	db, err := c.open(c.path)
	if err != nil {
		return nil, err
	}
	if report := loadExtensions(db, c.extensions); report.Err != nil {
		log.Printf("[WARN] extension load incomplete: %v", report.Err)
	}
	session, err := db.Connect()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &duckdbConn{db: db, session: session}, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver {
	return &duckdbDriver{}
}

var _ driver.Connector = (*Connector)(nil)

// --- driver.Conn and friends ---

// Ensure duckdbConn implements required interfaces.
var (
	_ driver.Conn               = (*duckdbConn)(nil)
	_ driver.ConnPrepareContext = (*duckdbConn)(nil)
	_ driver.ExecerContext      = (*duckdbConn)(nil)
	_ driver.QueryerContext     = (*duckdbConn)(nil)
	_ driver.Pinger             = (*duckdbConn)(nil)
	_ driver.ConnBeginTx        = (*duckdbConn)(nil)
)

func (c *duckdbConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *duckdbConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	stmt, err := c.session.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &duckdbStmt{
		conn:      c,
		stmt:      stmt,
		numInputs: stmt.ParameterCount(),
	}, nil
}

func (c *duckdbConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	c.closed = true
	return nil
}

func (c *duckdbConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *duckdbConn) BeginTx(ctx context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := c.ExecContext(ctx, "BEGIN TRANSACTION", nil); err != nil {
		return nil, err
	}
	return &duckdbTx{conn: c}, nil
}

func (c *duckdbConn) Ping(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	rows, err := c.QueryContext(ctx, "SELECT 1", nil)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (c *duckdbConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var res EngineResult
	if len(args) == 0 {
		r, err := c.session.Query(query)
		if err != nil {
			return nil, err
		}
		res = r
	} else {
		params, err := namedToParams(args)
		if err != nil {
			return nil, err
		}
		stmt, err := c.session.Prepare(query)
		if err != nil {
			return nil, err
		}
		r, err := stmt.Execute(params)
		stmt.Close()
		if err != nil {
			return nil, err
		}
		res = r
	}
	defer res.Close()
	return &duckdbSQLResult{rowsAffected: res.RowsChanged()}, nil
}

func (c *duckdbConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if len(args) == 0 {
		res, err := c.session.Query(query)
		if err != nil {
			return nil, err
		}
		return &duckdbRows{res: res}, nil
	}
	params, err := namedToParams(args)
	if err != nil {
		return nil, err
	}
	stmt, err := c.session.Prepare(query)
	if err != nil {
		return nil, err
	}
	res, err := stmt.Execute(params)
	if err != nil {
		stmt.Close()
		return nil, err
	}
	return &duckdbRows{res: res, stmt: stmt}, nil
}

func (c *duckdbConn) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session == nil {
		return ErrDuckConnClosed
	}
	return nil
}

// --- driver.Stmt and friends ---

// Ensure duckdbStmt implements required interfaces.
var (
	_ driver.Stmt             = (*duckdbStmt)(nil)
	_ driver.StmtExecContext  = (*duckdbStmt)(nil)
	_ driver.StmtQueryContext = (*duckdbStmt)(nil)
)

func (s *duckdbStmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.stmt.Close()
	return nil
}

func (s *duckdbStmt) NumInput() int {
	return s.numInputs
}

func (s *duckdbStmt) Exec(args []driver.Value) (driver.Result, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return s.ExecContext(context.Background(), named)
}

func (s *duckdbStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	res, err := s.run(ctx, args)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return &duckdbSQLResult{rowsAffected: res.RowsChanged()}, nil
}

func (s *duckdbStmt) Query(args []driver.Value) (driver.Rows, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return s.QueryContext(context.Background(), named)
}

func (s *duckdbStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	res, err := s.run(ctx, args)
	if err != nil {
		return nil, err
	}
	return &duckdbRows{res: res}, nil
}

func (s *duckdbStmt) run(ctx context.Context, args []driver.NamedValue) (EngineResult, error) {
	if s.closed {
		return nil, ErrDuckStmtClosed
	}
	if err := s.conn.checkOpen(); err != nil {
		return nil, err
	}
	params, err := namedToParams(args)
	if err != nil {
		return nil, err
	}
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return s.stmt.Execute(params)
}

// --- driver.Rows ---

// Ensure duckdbRows implements the required interface.
var _ driver.Rows = (*duckdbRows)(nil)

func (r *duckdbRows) Columns() []string {
	if r.columns != nil {
		return r.columns
	}
	cols := r.res.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	r.columns = names
	return r.columns
}

func (r *duckdbRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.res.Close()
	if r.stmt != nil {
		r.stmt.Close()
		r.stmt = nil
	}
	return nil
}

func (r *duckdbRows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}
	if !r.res.Next() {
		if err := r.res.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	n := len(r.res.Columns())
	if len(dest) != n {
		return fmt.Errorf("duckdb: expected %d dests, got %d", n, len(dest))
	}
	for i := 0; i < n; i++ {
		cell := r.res.Cell(i)
		switch {
		case cell.Null:
			dest[i] = nil
		case cell.Class == ClassBoolean:
			dest[i] = cell.Bool
		case cell.Class == ClassSigned:
			dest[i] = cell.Int
		case cell.Class == ClassUnsigned:
			// driver.Value has no unsigned integer representation
			if cell.Uint > uint64(math.MaxInt64) {
				dest[i] = int64(math.MaxInt64)
			} else {
				dest[i] = int64(cell.Uint)
			}
		case cell.Class == ClassFloat || cell.Class == ClassDouble:
			dest[i] = cell.Float
		default:
			dest[i] = cell.Text
		}
	}
	return nil
}

// --- driver.Result ---

var _ driver.Result = (*duckdbSQLResult)(nil)

func (r *duckdbSQLResult) LastInsertId() (int64, error) {
	return 0, ErrDuckNoLastInsertID
}

func (r *duckdbSQLResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- driver.Tx ---

var _ driver.Tx = (*duckdbTx)(nil)

func (tx *duckdbTx) Commit() error {
	if tx.done {
		return ErrDuckTxDone
	}
	tx.done = true
	_, err := tx.conn.ExecContext(context.Background(), "COMMIT", nil)
	return err
}

func (tx *duckdbTx) Rollback() error {
	if tx.done {
		return ErrDuckTxDone
	}
	tx.done = true
	_, err := tx.conn.ExecContext(context.Background(), "ROLLBACK", nil)
	return err
}

// Helpers

// namedToParams converts driver arguments to engine parameter values in
// ordinal order. Named parameters are rejected.
func namedToParams(args []driver.NamedValue) ([]ParameterValue, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([]ParameterValue, len(args))
	for _, nv := range args {
		if nv.Name != "" {
			return nil, ErrDuckNamedParameters
		}
		pos := nv.Ordinal
		if pos < 1 || pos > len(args) {
			return nil, fmt.Errorf("duckdb: parameter ordinal %d out of range", pos)
		}
		params[pos-1] = toDriverParam(nv.Value)
	}
	return params, nil
}

func toDriverParam(v any) ParameterValue {
	switch x := v.(type) {
	case time.Time:
		return StringValue(x.Format(time.RFC3339Nano))
	case []byte:
		return StringValue(string(x))
	default:
		return ToEngineValue(v)
	}
}
