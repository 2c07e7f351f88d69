package duckdb

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Manager is the name-keyed facade a host application talks to. Each open
// logical name is served by one database handle and one connection handle,
// so concurrent calls against the same name fully serialize. The manager
// decodes the bridge's sentinel convention back into Go errors; it is the
// layer where errors-as-values become errors again.
type Manager struct {
	bridge *Bridge
	store  *Store

	mu    sync.Mutex
	names map[string]managedDB
}

type managedDB struct {
	db   Handle
	conn Handle
}

// NewManager builds a manager over a bridge and a storage layout.
func NewManager(bridge *Bridge, store *Store) *Manager {
	return &Manager{bridge: bridge, store: store, names: map[string]managedDB{}}
}

// DefaultManager wires the production stack: real engine, default extension
// list, databases under dir, optional seeds under seedDir.
func DefaultManager(dir, seedDir string) *Manager {
	reg := NewRegistry(OpenEngine, DefaultExtensions)
	return NewManager(NewBridge(reg), &Store{Dir: dir, SeedDir: seedDir})
}

// Version reports the engine library version.
func (m *Manager) Version() string {
	return m.bridge.GetVersion()
}

// Open makes the logical name usable, seeding its file from the bundle
// directory when present. Opening an already open name succeeds.
func (m *Manager) Open(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.names[name]; ok {
		return nil
	}
	if err := m.store.SeedIfMissing(name); err != nil {
		return err
	}
	path := m.store.DatabasePath(name)
	db := m.bridge.Open(path)
	if db == 0 {
		return bridgeErr(OpenFailed, fmt.Sprintf("failed to open database %q", name))
	}
	conn := m.bridge.Connect(db)
	if conn == 0 {
		m.bridge.Close(db)
		return bridgeErr(ConnectFailed, fmt.Sprintf("failed to connect to database %q", name))
	}
	m.names[name] = managedDB{db: db, conn: conn}
	return nil
}

// Close disconnects and closes the logical name. Closing a name that is not
// open returns NotOpen.
func (m *Manager) Close(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked(name)
}

func (m *Manager) closeLocked(name string) error {
	h, ok := m.names[name]
	if !ok {
		return bridgeErr(NotOpen, "database not open: "+name)
	}
	delete(m.names, name)
	m.bridge.Disconnect(h.conn)
	m.bridge.Close(h.db)
	return nil
}

// CloseAll closes every open database. Used at plugin teardown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.names {
		if err := m.closeLocked(name); err != nil {
			log.Printf("[WARN] close %s: %v", name, err)
		}
	}
}

// IsOpen reports whether the logical name has a live connection.
func (m *Manager) IsOpen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.names[name]
	return ok
}

func (m *Manager) conn(name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.names[name]
	if !ok {
		return 0, bridgeErr(NotOpen, "database not open: "+name)
	}
	return h.conn, nil
}

// Execute runs a mutating statement and returns the affected-row count.
func (m *Manager) Execute(name, sql string) (int64, error) {
	conn, err := m.conn(name)
	if err != nil {
		return 0, err
	}
	out := m.bridge.Execute(conn, sql)
	if err := DecodeError(ExecutionFailed, out); err != nil {
		return 0, err
	}
	var changes struct {
		Changes int64 `json:"changes"`
	}
	if err := json.Unmarshal([]byte(out), &changes); err != nil {
		return 0, bridgeErr(SerializationFailed, "malformed execute response: "+err.Error())
	}
	return changes.Changes, nil
}

// Query runs sql and returns the rows as decoded JSON objects in column
// order per row object.
func (m *Manager) Query(name, sql string) ([]map[string]any, error) {
	conn, err := m.conn(name)
	if err != nil {
		return nil, err
	}
	return decodeRows(m.bridge.Query(conn, sql))
}

// QueryWithParams prepares sql, binds the host values positionally starting
// at index 1, executes, and returns the decoded rows. The statement is
// destroyed before returning.
func (m *Manager) QueryWithParams(name, sql string, params []any) ([]map[string]any, error) {
	conn, err := m.conn(name)
	if err != nil {
		return nil, err
	}
	stmt := m.bridge.Prepare(conn, sql)
	if stmt == 0 {
		return nil, bridgeErr(PrepareFailed, "failed to prepare statement: "+sql)
	}
	defer m.bridge.DestroyPrepared(stmt)

	for i, p := range params {
		if !m.bindHostValue(stmt, i+1, p) {
			return nil, bridgeErr(ExecutionFailed, fmt.Sprintf("failed to bind parameter %d", i+1))
		}
	}
	return decodeRows(m.bridge.ExecutePrepared(stmt))
}

// Run executes a parameterized mutating statement and returns a change
// count. The count is derived from the result rows, so a successful
// statement with an empty result still counts as one change.
func (m *Manager) Run(name, sql string, params []any) (int64, error) {
	rows, err := m.QueryWithParams(name, sql, params)
	if err != nil {
		return 0, err
	}
	if len(rows) > 0 {
		return int64(len(rows)), nil
	}
	return 1, nil
}

func (m *Manager) bindHostValue(stmt Handle, index int, v any) bool {
	p := ToEngineValue(v)
	switch p.Kind {
	case ParamNull:
		return m.bridge.BindNull(stmt, index)
	case ParamString:
		return m.bridge.BindString(stmt, index, p.Str)
	case ParamInt:
		return m.bridge.BindInt64(stmt, index, p.Int)
	case ParamDouble:
		return m.bridge.BindDouble(stmt, index, p.Float)
	case ParamBool:
		return m.bridge.BindBool(stmt, index, p.Bool)
	}
	return false
}

// DatabaseExists reports whether a database file exists for the name.
func (m *Manager) DatabaseExists(name string) bool {
	return m.store.Exists(name)
}

// DeleteDatabase closes the name if open, then removes its file and
// write-ahead log.
func (m *Manager) DeleteDatabase(name string) error {
	m.mu.Lock()
	if _, ok := m.names[name]; ok {
		if err := m.closeLocked(name); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()
	return m.store.Delete(name)
}

// ListTables returns the base table names of the database, sorted.
func (m *Manager) ListTables(name string) ([]string, error) {
	rows, err := m.Query(name, "SELECT table_name FROM duckdb_tables() ORDER BY table_name")
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if t, ok := row["table_name"].(string); ok {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

var parquetCompressions = map[string]bool{
	"uncompressed": true,
	"snappy":       true,
	"gzip":         true,
	"zstd":         true,
}

// ExportToParquet copies a table to a freshly named parquet file in the
// system temp directory and returns the file path along with the exported
// row count. The caller owns the file.
func (m *Manager) ExportToParquet(name, table, compression string) (string, int64, error) {
	if compression == "" {
		compression = "zstd"
	}
	if !parquetCompressions[strings.ToLower(compression)] {
		return "", 0, bridgeErr(ExecutionFailed, "unsupported parquet compression: "+compression)
	}
	if err := validateIdentifier(table); err != nil {
		return "", 0, err
	}

	rows, err := m.QueryWithParams(name,
		"SELECT count(*) AS n FROM duckdb_tables() WHERE table_name = $1", []any{table})
	if err != nil {
		return "", 0, err
	}
	if len(rows) == 0 || jsonInt(rows[0]["n"]) == 0 {
		return "", 0, bridgeErr(ExecutionFailed, "table does not exist: "+table)
	}

	countRows, err := m.Query(name, fmt.Sprintf(`SELECT count(*) AS n FROM "%s"`, table))
	if err != nil {
		return "", 0, err
	}
	var total int64
	if len(countRows) > 0 {
		total = jsonInt(countRows[0]["n"])
	}

	out := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%s.parquet", table, uuid.NewString()))
	copySQL := fmt.Sprintf(`COPY "%s" TO '%s' (FORMAT PARQUET, COMPRESSION %s)`,
		table, out, strings.ToUpper(compression))
	if _, err := m.Execute(name, copySQL); err != nil {
		return "", 0, err
	}
	log.Printf("[INFO] exported %s (%d rows) to %s", table, total, out)
	return out, total, nil
}

func validateIdentifier(s string) error {
	if s == "" || strings.ContainsAny(s, `"';`) {
		return bridgeErr(ExecutionFailed, "invalid identifier: "+s)
	}
	return nil
}

// jsonInt reads an integer out of a decoded JSON value. json.Unmarshal into
// any yields float64 for numbers.
func jsonInt(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case string:
		var n int64
		fmt.Sscanf(x, "%d", &n)
		return n
	default:
		return 0
	}
}

func decodeRows(out string) ([]map[string]any, error) {
	if err := DecodeError(ExecutionFailed, out); err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		return nil, bridgeErr(SerializationFailed, "malformed result payload: "+err.Error())
	}
	return rows, nil
}
