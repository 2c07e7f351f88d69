package duckdb

import (
	"fmt"
	"strings"
	"sync"
)

// fakeEngine is a scripted in-memory engine used across the package tests.
// Each SQL string maps to a canned outcome; prepared statements either
// replay a canned result or echo their bound parameters back as one row.

type fakeCall struct {
	err     error
	cols    []Column
	rows    [][]Cell
	changes int64

	// prepared-statement behavior
	nparams int
	execErr error
	echo    bool
}

type fakeDB struct {
	mu         sync.Mutex
	script     map[string]fakeCall
	prefixes   map[string]fakeCall // fallback for SQL with generated parts
	connectErr error
	closed     bool
	sessions   []*fakeSession
}

func newFakeDB(script map[string]fakeCall) *fakeDB {
	if script == nil {
		script = map[string]fakeCall{}
	}
	return &fakeDB{script: script}
}

// opener returns an EngineOpener serving this instance regardless of path.
func (f *fakeDB) opener() EngineOpener {
	return func(string) (EngineDatabase, error) { return f, nil }
}

func (f *fakeDB) Connect() (EngineSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	s := &fakeSession{db: f}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeDB) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeDB) lookup(sql string) (fakeCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if call, ok := f.script[sql]; ok {
		return call, nil
	}
	for prefix, call := range f.prefixes {
		if strings.HasPrefix(sql, prefix) {
			return call, nil
		}
	}
	return fakeCall{}, bridgeErr(ExecutionFailed, "no result scripted for: "+sql)
}

// setScript replaces the outcome for one SQL string, for stateful scenarios.
func (f *fakeDB) setScript(sql string, call fakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[sql] = call
}

// setPrefix scripts any SQL starting with prefix, for statements with
// generated fragments such as temp file names.
func (f *fakeDB) setPrefix(prefix string, call fakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefixes == nil {
		f.prefixes = map[string]fakeCall{}
	}
	f.prefixes[prefix] = call
}

type fakeSession struct {
	db     *fakeDB
	closed bool

	queries []string
}

func (s *fakeSession) Query(sql string) (EngineResult, error) {
	s.queries = append(s.queries, sql)
	call, err := s.db.lookup(sql)
	if err != nil {
		return nil, err
	}
	if call.err != nil {
		return nil, call.err
	}
	return newFakeResult(call), nil
}

func (s *fakeSession) Prepare(sql string) (EngineStatement, error) {
	call, err := s.db.lookup(sql)
	if err != nil {
		return nil, bridgeErr(PrepareFailed, err.Error())
	}
	if call.err != nil {
		return nil, call.err
	}
	return &fakeStmt{call: call}, nil
}

func (s *fakeSession) Close() { s.closed = true }

type fakeStmt struct {
	call   fakeCall
	closed bool

	lastParams []ParameterValue
	execCount  int
}

func (st *fakeStmt) ParameterCount() int { return st.call.nparams }

func (st *fakeStmt) Execute(params []ParameterValue) (EngineResult, error) {
	st.execCount++
	st.lastParams = append([]ParameterValue(nil), params...)
	if st.call.execErr != nil {
		return nil, st.call.execErr
	}
	if st.call.echo {
		return echoResult(params), nil
	}
	return newFakeResult(st.call), nil
}

func (st *fakeStmt) Close() { st.closed = true }

// echoResult renders the bound parameters back as a single row with columns
// p1..pn, preserving each parameter's type.
func echoResult(params []ParameterValue) EngineResult {
	cols := make([]Column, len(params))
	row := make([]Cell, len(params))
	for i, p := range params {
		cols[i] = Column{Name: fmt.Sprintf("p%d", i+1)}
		switch p.Kind {
		case ParamNull:
			cols[i].Class = ClassOther
			row[i] = Cell{Null: true, Class: ClassOther}
		case ParamString:
			cols[i].Class = ClassOther
			row[i] = Cell{Class: ClassOther, Text: p.Str}
		case ParamInt:
			cols[i].Class = ClassSigned
			row[i] = Cell{Class: ClassSigned, Int: p.Int}
		case ParamDouble:
			cols[i].Class = ClassDouble
			row[i] = Cell{Class: ClassDouble, Float: p.Float}
		case ParamBool:
			cols[i].Class = ClassBoolean
			row[i] = Cell{Class: ClassBoolean, Bool: p.Bool}
		}
	}
	return &fakeResult{cols: cols, rows: [][]Cell{row}, pos: -1}
}

type fakeResult struct {
	cols    []Column
	rows    [][]Cell
	changes int64
	err     error

	pos    int
	closed bool
}

func newFakeResult(call fakeCall) *fakeResult {
	return &fakeResult{cols: call.cols, rows: call.rows, changes: call.changes, pos: -1}
}

func (r *fakeResult) Columns() []Column { return r.cols }

func (r *fakeResult) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeResult) Cell(col int) Cell { return r.rows[r.pos][col] }

func (r *fakeResult) RowsChanged() int64 { return r.changes }

func (r *fakeResult) Err() error { return r.err }

func (r *fakeResult) Close() { r.closed = true }

// textCell, intCell etc. keep scripted rows short to write.
func textCell(s string) Cell { return Cell{Class: ClassOther, Text: s} }

func intCell(v int64) Cell { return Cell{Class: ClassSigned, Int: v} }

func uintCell(v uint64) Cell { return Cell{Class: ClassUnsigned, Uint: v} }

func boolCell(v bool) Cell { return Cell{Class: ClassBoolean, Bool: v} }

func doubleCell(v float64) Cell { return Cell{Class: ClassDouble, Float: v} }

func nullCell() Cell { return Cell{Null: true, Class: ClassOther} }
