package duckdb

import (
	"fmt"
	"log"
)

// errorPrefix marks a failed string-returning bridge call. Handle-returning
// calls signal failure with the zero Handle instead. The lossy encode into
// sentinels happens only here, at the boundary; everything beneath works
// with ordinary error values.
const errorPrefix = "ERROR:"

// Bridge is the flat, sentinel-encoded call surface exposed to a foreign
// host runtime. It never panics across a call and never returns a Go error:
// failures come back as the zero handle, a prefixed string, or false.
type Bridge struct {
	reg *Registry
}

// NewBridge wraps a registry in the sentinel-encoded surface.
func NewBridge(reg *Registry) *Bridge {
	return &Bridge{reg: reg}
}

func encodeErr(err error) string {
	return errorPrefix + err.Error()
}

// IsErrorString reports whether a bridge string result is the encoded form
// of a failure.
func IsErrorString(s string) bool {
	return len(s) >= len(errorPrefix) && s[:len(errorPrefix)] == errorPrefix
}

// DecodeError converts a sentinel-encoded bridge string back into an error
// of the given kind, or nil when the string is a success value.
func DecodeError(kind ErrorKind, s string) error {
	if !IsErrorString(s) {
		return nil
	}
	return &Error{Kind: kind, Message: s[len(errorPrefix):]}
}

/** Returns the engine library version string. */
func (b *Bridge) GetVersion() string {
	return EngineVersion()
}

/**
 * Opens a database at path, empty for in-memory, and returns its handle.
 * A non-empty path doubles as the logical name, so reopening the same path
 * returns the existing handle. Returns 0 on failure.
 */
func (b *Bridge) Open(path string) Handle {
	enginePath := path
	if path == MemoryName {
		enginePath = ""
	}
	h, err := b.reg.OpenDatabase(path, enginePath)
	if err != nil {
		log.Printf("[WARN] open %q: %v", path, err)
		return 0
	}
	return h
}

/** Reports whether the named extension loaded when the database opened. */
func (b *Bridge) HasExtension(dbHandle Handle, name string) bool {
	return b.reg.HasExtension(dbHandle, name)
}

/** Closes a database handle. Fails quietly when connections are still live. */
func (b *Bridge) Close(dbHandle Handle) {
	if err := b.reg.CloseDatabase(dbHandle); err != nil {
		log.Printf("[WARN] close database %d: %v", dbHandle, err)
	}
}

/** Opens a connection on the database. Returns 0 on failure. */
func (b *Bridge) Connect(dbHandle Handle) Handle {
	h, err := b.reg.Connect(dbHandle)
	if err != nil {
		log.Printf("[WARN] connect on database %d: %v", dbHandle, err)
		return 0
	}
	return h
}

/** Closes a connection handle and every statement prepared on it. */
func (b *Bridge) Disconnect(connHandle Handle) {
	if err := b.reg.Disconnect(connHandle); err != nil {
		log.Printf("[WARN] disconnect %d: %v", connHandle, err)
	}
}

/**
 * Runs sql on the connection and returns the full result set as a JSON
 * array of row objects, or an "ERROR:"-prefixed message.
 */
func (b *Bridge) Query(connHandle Handle, sql string) string {
	var out string
	err := b.reg.withSession(connHandle, func(s EngineSession) error {
		res, err := s.Query(sql)
		if err != nil {
			return err
		}
		defer res.Close()
		out, err = serializeResult(res)
		return err
	})
	if err != nil {
		return encodeErr(err)
	}
	return out
}

/**
 * Runs a mutating sql statement and returns {"changes":N} where N is the
 * engine's affected-row count, or an "ERROR:"-prefixed message.
 */
func (b *Bridge) Execute(connHandle Handle, sql string) string {
	var changes int64
	err := b.reg.withSession(connHandle, func(s EngineSession) error {
		res, err := s.Query(sql)
		if err != nil {
			return err
		}
		defer res.Close()
		changes = res.RowsChanged()
		return nil
	})
	if err != nil {
		return encodeErr(err)
	}
	return fmt.Sprintf(`{"changes":%d}`, changes)
}

/** Prepares sql on the connection and returns a statement handle, 0 on failure. */
func (b *Bridge) Prepare(connHandle Handle, sql string) Handle {
	h, err := b.reg.Prepare(connHandle, sql)
	if err != nil {
		log.Printf("[WARN] prepare on connection %d: %v", connHandle, err)
		return 0
	}
	return h
}

func (b *Bridge) bind(stmtHandle Handle, index int, v ParameterValue) bool {
	err := b.reg.withStatement(stmtHandle, func(p *preparedStatement) error {
		return p.Bind(index, v)
	})
	if err != nil {
		log.Printf("[WARN] bind %d on statement %d: %v", index, stmtHandle, err)
		return false
	}
	return true
}

/** Binds a string at the 1-based index. */
func (b *Bridge) BindString(stmtHandle Handle, index int, value string) bool {
	return b.bind(stmtHandle, index, StringValue(value))
}

/** Binds a 64-bit integer at the 1-based index. */
func (b *Bridge) BindInt64(stmtHandle Handle, index int, value int64) bool {
	return b.bind(stmtHandle, index, IntValue(value))
}

/** Binds a double at the 1-based index. */
func (b *Bridge) BindDouble(stmtHandle Handle, index int, value float64) bool {
	return b.bind(stmtHandle, index, DoubleValue(value))
}

/** Binds a boolean at the 1-based index. */
func (b *Bridge) BindBool(stmtHandle Handle, index int, value bool) bool {
	return b.bind(stmtHandle, index, BoolValue(value))
}

/** Binds null at the 1-based index. */
func (b *Bridge) BindNull(stmtHandle Handle, index int) bool {
	return b.bind(stmtHandle, index, NullValue())
}

/** Resets every binding slot to null. The statement stays prepared. */
func (b *Bridge) ClearBindings(stmtHandle Handle) bool {
	err := b.reg.withStatement(stmtHandle, func(p *preparedStatement) error {
		p.ClearBindings()
		return nil
	})
	if err != nil {
		log.Printf("[WARN] clear bindings on statement %d: %v", stmtHandle, err)
		return false
	}
	return true
}

/**
 * Executes the prepared statement with its current bindings and returns the
 * result set as a JSON array, or an "ERROR:"-prefixed message. The statement
 * remains valid afterward, including after an execution error.
 */
func (b *Bridge) ExecutePrepared(stmtHandle Handle) string {
	var out string
	err := b.reg.withStatement(stmtHandle, func(p *preparedStatement) error {
		res, err := p.Execute()
		if err != nil {
			return err
		}
		defer res.Close()
		out, err = serializeResult(res)
		return err
	})
	if err != nil {
		return encodeErr(err)
	}
	return out
}

/** Destroys a prepared statement handle. */
func (b *Bridge) DestroyPrepared(stmtHandle Handle) {
	if err := b.reg.DestroyStatement(stmtHandle); err != nil {
		log.Printf("[WARN] destroy statement %d: %v", stmtHandle, err)
	}
}
