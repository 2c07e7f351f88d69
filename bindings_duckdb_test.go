package duckdb

import (
	"database/sql"
	"encoding/json"
	"testing"
)

// requireLibLoaded skips the test when no engine library is available on
// the machine, so the suite stays runnable without libduckdb installed.
func requireLibLoaded(t *testing.T) {
	t.Helper()
	if err := loadDuckDB(); err != nil {
		t.Skipf("duckdb library not available: %v", err)
	}
}

func openMemoryBridge(t *testing.T) (*Bridge, Handle, Handle) {
	t.Helper()
	b := NewBridge(NewRegistry(OpenEngine, nil))
	db := b.Open("")
	if db == 0 {
		t.Fatal("failed to open in-memory database")
	}
	conn := b.Connect(db)
	if conn == 0 {
		t.Fatal("failed to connect")
	}
	t.Cleanup(func() {
		b.Disconnect(conn)
		b.Close(db)
	})
	return b, db, conn
}

func TestIntegrationVersion(t *testing.T) {
	requireLibLoaded(t)
	v := EngineVersion()
	if v == "" || v == "unknown" {
		t.Fatalf("unexpected version %q", v)
	}
	t.Logf("engine version: %s", v)
}

func TestIntegrationInsertAndQuery(t *testing.T) {
	requireLibLoaded(t)
	b, _, conn := openMemoryBridge(t)

	out := b.Execute(conn, "CREATE TABLE t (id INTEGER, name VARCHAR)")
	if IsErrorString(out) {
		t.Fatalf("create table: %s", out)
	}

	stmt := b.Prepare(conn, "INSERT INTO t VALUES ($1, $2)")
	if stmt == 0 {
		t.Fatal("prepare failed")
	}
	defer b.DestroyPrepared(stmt)
	if !b.BindInt64(stmt, 1, 1) {
		t.Fatal("bind int failed")
	}
	if !b.BindString(stmt, 2, "Alice") {
		t.Fatal("bind string failed")
	}
	if out := b.ExecutePrepared(stmt); IsErrorString(out) {
		t.Fatalf("insert: %s", out)
	}

	out = b.Query(conn, "SELECT * FROM t")
	if out != `[{"id":1,"name":"Alice"}]` {
		t.Fatalf("unexpected result: %s", out)
	}
}

func TestIntegrationDoubleRoundTrip(t *testing.T) {
	requireLibLoaded(t)
	b, _, conn := openMemoryBridge(t)

	stmt := b.Prepare(conn, "SELECT $1::DOUBLE AS v")
	if stmt == 0 {
		t.Fatal("prepare failed")
	}
	defer b.DestroyPrepared(stmt)
	if !b.BindDouble(stmt, 1, 3.5) {
		t.Fatal("bind failed")
	}
	out := b.ExecutePrepared(stmt)
	if out != `[{"v":3.5}]` {
		t.Fatalf("unexpected result: %s", out)
	}
}

func TestIntegrationErrorFidelity(t *testing.T) {
	requireLibLoaded(t)
	b, _, conn := openMemoryBridge(t)

	out := b.Query(conn, "SELEC 1")
	if !IsErrorString(out) {
		t.Fatalf("expected error, got %s", out)
	}
	if len(out) <= len("ERROR:") {
		t.Fatal("error carries no engine diagnostic")
	}
}

func TestIntegrationEscapingRoundTrip(t *testing.T) {
	requireLibLoaded(t)
	b, _, conn := openMemoryBridge(t)

	original := "q\"uote back\\slash new\nline ctl\x01"
	stmt := b.Prepare(conn, "SELECT $1 AS s")
	if stmt == 0 {
		t.Fatal("prepare failed")
	}
	defer b.DestroyPrepared(stmt)
	if !b.BindString(stmt, 1, original) {
		t.Fatal("bind failed")
	}
	out := b.ExecutePrepared(stmt)
	if IsErrorString(out) {
		t.Fatalf("execute: %s", out)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("result is not valid JSON: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0]["s"] != original {
		t.Fatalf("round-trip mismatch: %#v", rows)
	}
}

func TestIntegrationDisconnectedHandle(t *testing.T) {
	requireLibLoaded(t)
	b := NewBridge(NewRegistry(OpenEngine, nil))
	db := b.Open("")
	if db == 0 {
		t.Fatal("open failed")
	}
	conn := b.Connect(db)
	if conn == 0 {
		t.Fatal("connect failed")
	}
	b.Disconnect(conn)

	out := b.Query(conn, "SELECT 1")
	if !IsErrorString(out) {
		t.Fatalf("expected error on disconnected handle, got %s", out)
	}
	b.Close(db)
}

func TestIntegrationRowsChanged(t *testing.T) {
	requireLibLoaded(t)
	b, _, conn := openMemoryBridge(t)

	if out := b.Execute(conn, "CREATE TABLE n (v INTEGER)"); IsErrorString(out) {
		t.Fatalf("create: %s", out)
	}
	out := b.Execute(conn, "INSERT INTO n VALUES (1), (2), (3)")
	if out != `{"changes":3}` {
		t.Fatalf("unexpected changes payload: %s", out)
	}
}

func TestIntegrationSQLDriver(t *testing.T) {
	requireLibLoaded(t)

	c, err := NewConnector(":memory:", WithExtensions(nil))
	if err != nil {
		t.Fatal(err)
	}
	db := sql.OpenDB(c)
	db.SetMaxOpenConns(1)
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t (id INTEGER, name VARCHAR)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec("INSERT INTO t VALUES ($1, $2)", int64(1), "Alice"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var id int64
	var name string
	if err := db.QueryRow("SELECT id, name FROM t").Scan(&id, &name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != 1 || name != "Alice" {
		t.Fatalf("unexpected row: %d %q", id, name)
	}
}
