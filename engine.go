package duckdb

// The bridge consumes the embedding engine only through the interfaces in
// this file. engine_duckdb.go provides the production implementation over
// the DuckDB C API; tests substitute scripted fakes.

// TypeClass groups the engine's column types by their JSON representation.
// Everything outside the numeric/boolean classes is rendered through the
// engine's canonical textual form and serialized as a JSON string.
type TypeClass int32

const (
	ClassBoolean TypeClass = iota + 1
	ClassSigned
	ClassUnsigned
	ClassFloat
	ClassDouble
	ClassOther
)

// Column describes one result column: its name and type class.
type Column struct {
	Name  string
	Class TypeClass
}

// Cell is a single result cell. Exactly one of the value fields is
// meaningful, selected by Class; Null overrides all of them.
type Cell struct {
	Null  bool
	Class TypeClass
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Text  string // canonical textual rendering for ClassOther
}

// EngineOpener constructs one engine instance. An empty path opens an
// in-memory database.
type EngineOpener func(path string) (EngineDatabase, error)

// EngineDatabase is one open engine instance.
type EngineDatabase interface {
	// Connect opens a session bound to this database.
	Connect() (EngineSession, error)
	Close()
}

// EngineSession is a single-threaded session. Callers must not drive one
// session from multiple goroutines concurrently; the registry serializes
// access per connection.
type EngineSession interface {
	Query(sql string) (EngineResult, error)
	Prepare(sql string) (EngineStatement, error)
	Close()
}

// EngineStatement is a parsed, repeatedly executable statement. Execute
// receives the full binding vector in one call and leaves the statement
// valid regardless of outcome.
type EngineStatement interface {
	ParameterCount() int
	Execute(params []ParameterValue) (EngineResult, error)
	Close()
}

// EngineResult iterates rows of a result set. The engine may deliver rows
// chunk-by-chunk underneath; callers see one row at a time and never a
// materialized matrix.
type EngineResult interface {
	Columns() []Column
	Next() bool
	Cell(col int) Cell
	RowsChanged() int64
	Err() error
	Close()
}
