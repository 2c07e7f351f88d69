package duckdb

import (
	"fmt"
	"log"
)

// OpenEngine opens a DuckDB instance at path (empty for in-memory) and is
// the production EngineOpener. The library is loaded on first call.
func OpenEngine(path string) (EngineDatabase, error) {
	if err := loadDuckDB(); err != nil {
		return nil, bridgeErr(OpenFailed, err.Error())
	}
	cfg, err := duckdb_create_config()
	if err != nil {
		return nil, err
	}
	defer duckdb_destroy_config(cfg)
	// statically linked extensions are not signed
	if err := duckdb_set_config(cfg, "allow_unsigned_extensions", "true"); err != nil {
		return nil, err
	}
	db, err := duckdb_open_ext(path, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[DEBUG] engine opened, path=%q", path)
	return &duckdbDatabase{db: db}, nil
}

// EngineVersion reports the engine library version, or "unknown" when the
// library is not available.
func EngineVersion() string {
	if err := loadDuckDB(); err != nil {
		return "unknown"
	}
	return duckdb_library_version()
}

type duckdbDatabase struct {
	db duckdbDatabaseHandle
}

func (d *duckdbDatabase) Connect() (EngineSession, error) {
	conn, err := duckdb_connect(d.db)
	if err != nil {
		return nil, err
	}
	return &duckdbSession{conn: conn}, nil
}

func (d *duckdbDatabase) Close() {
	duckdb_close(d.db)
	d.db = nil
}

type duckdbSession struct {
	conn duckdbConnectionHandle
}

func (s *duckdbSession) Query(sql string) (EngineResult, error) {
	res := new(c_duckdb_result_t)
	if err := duckdb_query(s.conn, sql, res); err != nil {
		return nil, err
	}
	return newDuckdbResult(res), nil
}

func (s *duckdbSession) Prepare(sql string) (EngineStatement, error) {
	stmt, err := duckdb_prepare(s.conn, sql)
	if err != nil {
		return nil, err
	}
	return &duckdbStatement{stmt: stmt, nparams: duckdb_nparams(stmt)}, nil
}

func (s *duckdbSession) Close() {
	duckdb_disconnect(s.conn)
	s.conn = nil
}

type duckdbStatement struct {
	stmt    duckdbPreparedHandle
	nparams int
}

func (st *duckdbStatement) ParameterCount() int { return st.nparams }

// Execute applies the full binding vector, then runs the statement. A bind
// rejected by the engine surfaces with the engine's diagnostic and leaves
// the statement usable.
func (st *duckdbStatement) Execute(params []ParameterValue) (EngineResult, error) {
	for i, p := range params {
		index := i + 1
		var state duckdb_state_t
		switch p.Kind {
		case ParamNull:
			state = duckdb_bind_null(st.stmt, index)
		case ParamString:
			state = duckdb_bind_varchar(st.stmt, index, p.Str)
		case ParamInt:
			state = duckdb_bind_int64(st.stmt, index, p.Int)
		case ParamDouble:
			state = duckdb_bind_double(st.stmt, index, p.Float)
		case ParamBool:
			state = duckdb_bind_boolean(st.stmt, index, p.Bool)
		default:
			return nil, bridgeErr(ExecutionFailed, fmt.Sprintf("unknown parameter kind %d at index %d", p.Kind, index))
		}
		if state != duckdb_success {
			msg := duckdb_prepare_error(st.stmt)
			if msg == "" {
				msg = fmt.Sprintf("failed to bind parameter %d", index)
			}
			return nil, bridgeErr(ExecutionFailed, msg)
		}
	}
	res := new(c_duckdb_result_t)
	if err := duckdb_execute_prepared(st.stmt, res); err != nil {
		return nil, err
	}
	return newDuckdbResult(res), nil
}

func (st *duckdbStatement) Close() {
	duckdb_destroy_prepare(st.stmt)
	st.stmt = nil
}

// duckdbResult iterates a result set row by row. The C API hands back a
// materialized result; the iterator keeps consumers streaming regardless.
type duckdbResult struct {
	res   *c_duckdb_result_t
	cols  []Column
	types []duckdb_type_t
	rows  int64
	row   int64
}

func newDuckdbResult(res *c_duckdb_result_t) *duckdbResult {
	n := duckdb_column_count(res)
	cols := make([]Column, n)
	types := make([]duckdb_type_t, n)
	for i := 0; i < n; i++ {
		types[i] = duckdb_column_type(res, i)
		cols[i] = Column{Name: duckdb_column_name(res, i), Class: classifyType(types[i])}
	}
	return &duckdbResult{res: res, cols: cols, types: types, rows: duckdb_row_count(res), row: -1}
}

func (r *duckdbResult) Columns() []Column { return r.cols }

func (r *duckdbResult) Next() bool {
	r.row++
	return r.row < r.rows
}

func (r *duckdbResult) Cell(col int) Cell {
	c := Cell{Class: r.cols[col].Class}
	if duckdb_value_is_null(r.res, int64(col), r.row) {
		c.Null = true
		return c
	}
	switch c.Class {
	case ClassBoolean:
		c.Bool = duckdb_value_boolean(r.res, int64(col), r.row)
	case ClassSigned:
		c.Int = duckdb_value_int64(r.res, int64(col), r.row)
	case ClassUnsigned:
		c.Uint = duckdb_value_uint64(r.res, int64(col), r.row)
	case ClassFloat:
		c.Float = float64(duckdb_value_float(r.res, int64(col), r.row))
	case ClassDouble:
		c.Float = duckdb_value_double(r.res, int64(col), r.row)
	default:
		c.Text = duckdb_value_varchar(r.res, int64(col), r.row)
	}
	return c
}

func (r *duckdbResult) RowsChanged() int64 {
	return duckdb_rows_changed(r.res)
}

func (r *duckdbResult) Err() error { return nil }

func (r *duckdbResult) Close() {
	if r.res != nil {
		duckdb_destroy_result(r.res)
		r.res = nil
	}
}

// classifyType buckets an engine column type by JSON representation.
// Text, binary, temporal, interval, decimal, hugeint, uuid and nested types
// all render through the engine's canonical text, which is lossless where a
// 64-bit JSON number would not be.
func classifyType(t duckdb_type_t) TypeClass {
	switch t {
	case DUCKDB_TYPE_BOOLEAN:
		return ClassBoolean
	case DUCKDB_TYPE_TINYINT, DUCKDB_TYPE_SMALLINT, DUCKDB_TYPE_INTEGER, DUCKDB_TYPE_BIGINT:
		return ClassSigned
	case DUCKDB_TYPE_UTINYINT, DUCKDB_TYPE_USMALLINT, DUCKDB_TYPE_UINTEGER, DUCKDB_TYPE_UBIGINT:
		return ClassUnsigned
	case DUCKDB_TYPE_FLOAT:
		return ClassFloat
	case DUCKDB_TYPE_DOUBLE:
		return ClassDouble
	default:
		return ClassOther
	}
}
