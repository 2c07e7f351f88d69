package duckdb

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// define all necessary constants first
type duckdb_state_t int32

const (
	duckdb_success duckdb_state_t = 0
	duckdb_error   duckdb_state_t = 1
)

type duckdb_type_t int32

const (
	DUCKDB_TYPE_INVALID      duckdb_type_t = 0
	DUCKDB_TYPE_BOOLEAN      duckdb_type_t = 1
	DUCKDB_TYPE_TINYINT      duckdb_type_t = 2
	DUCKDB_TYPE_SMALLINT     duckdb_type_t = 3
	DUCKDB_TYPE_INTEGER      duckdb_type_t = 4
	DUCKDB_TYPE_BIGINT       duckdb_type_t = 5
	DUCKDB_TYPE_UTINYINT     duckdb_type_t = 6
	DUCKDB_TYPE_USMALLINT    duckdb_type_t = 7
	DUCKDB_TYPE_UINTEGER     duckdb_type_t = 8
	DUCKDB_TYPE_UBIGINT      duckdb_type_t = 9
	DUCKDB_TYPE_FLOAT        duckdb_type_t = 10
	DUCKDB_TYPE_DOUBLE       duckdb_type_t = 11
	DUCKDB_TYPE_TIMESTAMP    duckdb_type_t = 12
	DUCKDB_TYPE_DATE         duckdb_type_t = 13
	DUCKDB_TYPE_TIME         duckdb_type_t = 14
	DUCKDB_TYPE_INTERVAL     duckdb_type_t = 15
	DUCKDB_TYPE_HUGEINT      duckdb_type_t = 16
	DUCKDB_TYPE_VARCHAR      duckdb_type_t = 17
	DUCKDB_TYPE_BLOB         duckdb_type_t = 18
	DUCKDB_TYPE_DECIMAL      duckdb_type_t = 19
	DUCKDB_TYPE_TIMESTAMP_S  duckdb_type_t = 20
	DUCKDB_TYPE_TIMESTAMP_MS duckdb_type_t = 21
	DUCKDB_TYPE_TIMESTAMP_NS duckdb_type_t = 22
	DUCKDB_TYPE_ENUM         duckdb_type_t = 23
	DUCKDB_TYPE_LIST         duckdb_type_t = 24
	DUCKDB_TYPE_STRUCT       duckdb_type_t = 25
	DUCKDB_TYPE_MAP          duckdb_type_t = 26
	DUCKDB_TYPE_UUID         duckdb_type_t = 27
	DUCKDB_TYPE_UNION        duckdb_type_t = 28
	DUCKDB_TYPE_BIT          duckdb_type_t = 29
	DUCKDB_TYPE_TIME_TZ      duckdb_type_t = 30
	DUCKDB_TYPE_TIMESTAMP_TZ duckdb_type_t = 31
	DUCKDB_TYPE_UHUGEINT     duckdb_type_t = 32
	DUCKDB_TYPE_ARRAY        duckdb_type_t = 33
	DUCKDB_TYPE_ANY          duckdb_type_t = 34
	DUCKDB_TYPE_VARINT       duckdb_type_t = 35
	DUCKDB_TYPE_SQLNULL      duckdb_type_t = 36
)

// define opaque pointers as-is and accept them as exact arguments
type duckdb_database_t struct{}
type duckdb_connection_t struct{}
type duckdb_prepared_statement_t struct{}
type duckdb_config_t struct{}

type duckdbDatabaseHandle *duckdb_database_t
type duckdbConnectionHandle *duckdb_connection_t
type duckdbPreparedHandle *duckdb_prepared_statement_t
type duckdbConfigHandle *duckdb_config_t

// c_duckdb_result_t mirrors the public duckdb_result struct. All fields
// except internal_data are deprecated in the C API; the struct exists here
// only so Go owns the allocation and can pass its address to the accessors.
type c_duckdb_result_t struct {
	deprecatedColumnCount uint64  // idx_t
	deprecatedRowCount    uint64  // idx_t
	deprecatedRowsChanged uint64  // idx_t
	deprecatedColumns     uintptr // duckdb_column*
	deprecatedErrorMsg    uintptr // char*
	internalData          uintptr // void*
}

// then, define C extern methods
var (
	// always use low level types here - never mix them with exported public types
	c_duckdb_library_version func() unsafe.Pointer // const char*

	c_duckdb_create_config func(
		config unsafe.Pointer, // duckdb_config*
	) duckdb_state_t

	c_duckdb_set_config func(
		config unsafe.Pointer, // duckdb_config
		name string, // const char*
		option string, // const char*
	) duckdb_state_t

	c_duckdb_destroy_config func(
		config unsafe.Pointer, // duckdb_config*
	)

	c_duckdb_open_ext func(
		path unsafe.Pointer, // const char* | NULL for in-memory
		database unsafe.Pointer, // duckdb_database*
		config unsafe.Pointer, // duckdb_config
		errorOptOut unsafe.Pointer, // char** | freed with duckdb_free
	) duckdb_state_t

	c_duckdb_close func(
		database unsafe.Pointer, // duckdb_database*
	)

	c_duckdb_connect func(
		database unsafe.Pointer, // duckdb_database
		connection unsafe.Pointer, // duckdb_connection*
	) duckdb_state_t

	c_duckdb_disconnect func(
		connection unsafe.Pointer, // duckdb_connection*
	)

	c_duckdb_query func(
		connection unsafe.Pointer, // duckdb_connection
		sql string, // const char*
		result unsafe.Pointer, // duckdb_result*
	) duckdb_state_t

	c_duckdb_destroy_result func(
		result unsafe.Pointer, // duckdb_result*
	)

	c_duckdb_result_error func(
		result unsafe.Pointer, // duckdb_result*
	) unsafe.Pointer // const char*, owned by the result

	c_duckdb_column_count func(
		result unsafe.Pointer, // duckdb_result*
	) uint64

	c_duckdb_row_count func(
		result unsafe.Pointer, // duckdb_result*
	) uint64

	c_duckdb_rows_changed func(
		result unsafe.Pointer, // duckdb_result*
	) uint64

	c_duckdb_column_name func(
		result unsafe.Pointer, // duckdb_result*
		col uint64, // idx_t
	) unsafe.Pointer // const char*, owned by the result

	c_duckdb_column_type func(
		result unsafe.Pointer, // duckdb_result*
		col uint64, // idx_t
	) duckdb_type_t

	c_duckdb_value_is_null func(
		result unsafe.Pointer, // duckdb_result*
		col uint64,
		row uint64,
	) bool

	c_duckdb_value_boolean func(
		result unsafe.Pointer,
		col uint64,
		row uint64,
	) bool

	c_duckdb_value_int64 func(
		result unsafe.Pointer,
		col uint64,
		row uint64,
	) int64

	c_duckdb_value_uint64 func(
		result unsafe.Pointer,
		col uint64,
		row uint64,
	) uint64

	c_duckdb_value_float func(
		result unsafe.Pointer,
		col uint64,
		row uint64,
	) float32

	c_duckdb_value_double func(
		result unsafe.Pointer,
		col uint64,
		row uint64,
	) float64

	c_duckdb_value_varchar func(
		result unsafe.Pointer,
		col uint64,
		row uint64,
	) unsafe.Pointer // char*, freed with duckdb_free

	c_duckdb_prepare func(
		connection unsafe.Pointer, // duckdb_connection
		sql string, // const char*
		statement unsafe.Pointer, // duckdb_prepared_statement*
	) duckdb_state_t

	c_duckdb_prepare_error func(
		statement unsafe.Pointer, // duckdb_prepared_statement
	) unsafe.Pointer // const char*, owned by the statement

	c_duckdb_nparams func(
		statement unsafe.Pointer, // duckdb_prepared_statement
	) uint64

	c_duckdb_bind_null func(
		statement unsafe.Pointer,
		index uint64, // idx_t, 1-based
	) duckdb_state_t

	c_duckdb_bind_boolean func(
		statement unsafe.Pointer,
		index uint64,
		value bool,
	) duckdb_state_t

	c_duckdb_bind_int64 func(
		statement unsafe.Pointer,
		index uint64,
		value int64,
	) duckdb_state_t

	c_duckdb_bind_double func(
		statement unsafe.Pointer,
		index uint64,
		value float64,
	) duckdb_state_t

	c_duckdb_bind_varchar func(
		statement unsafe.Pointer,
		index uint64,
		value string, // const char*
	) duckdb_state_t

	c_duckdb_execute_prepared func(
		statement unsafe.Pointer, // duckdb_prepared_statement
		result unsafe.Pointer, // duckdb_result*
	) duckdb_state_t

	c_duckdb_destroy_prepare func(
		statement unsafe.Pointer, // duckdb_prepared_statement*
	)

	c_duckdb_free func(
		ptr unsafe.Pointer,
	)
)

// implement a function to register extern methods from loaded lib
// DO NOT load lib - as it will be done externally
func register_duckdb(handle uintptr) {
	purego.RegisterLibFunc(&c_duckdb_library_version, handle, "duckdb_library_version")
	purego.RegisterLibFunc(&c_duckdb_create_config, handle, "duckdb_create_config")
	purego.RegisterLibFunc(&c_duckdb_set_config, handle, "duckdb_set_config")
	purego.RegisterLibFunc(&c_duckdb_destroy_config, handle, "duckdb_destroy_config")
	purego.RegisterLibFunc(&c_duckdb_open_ext, handle, "duckdb_open_ext")
	purego.RegisterLibFunc(&c_duckdb_close, handle, "duckdb_close")
	purego.RegisterLibFunc(&c_duckdb_connect, handle, "duckdb_connect")
	purego.RegisterLibFunc(&c_duckdb_disconnect, handle, "duckdb_disconnect")
	purego.RegisterLibFunc(&c_duckdb_query, handle, "duckdb_query")
	purego.RegisterLibFunc(&c_duckdb_destroy_result, handle, "duckdb_destroy_result")
	purego.RegisterLibFunc(&c_duckdb_result_error, handle, "duckdb_result_error")
	purego.RegisterLibFunc(&c_duckdb_column_count, handle, "duckdb_column_count")
	purego.RegisterLibFunc(&c_duckdb_row_count, handle, "duckdb_row_count")
	purego.RegisterLibFunc(&c_duckdb_rows_changed, handle, "duckdb_rows_changed")
	purego.RegisterLibFunc(&c_duckdb_column_name, handle, "duckdb_column_name")
	purego.RegisterLibFunc(&c_duckdb_column_type, handle, "duckdb_column_type")
	purego.RegisterLibFunc(&c_duckdb_value_is_null, handle, "duckdb_value_is_null")
	purego.RegisterLibFunc(&c_duckdb_value_boolean, handle, "duckdb_value_boolean")
	purego.RegisterLibFunc(&c_duckdb_value_int64, handle, "duckdb_value_int64")
	purego.RegisterLibFunc(&c_duckdb_value_uint64, handle, "duckdb_value_uint64")
	purego.RegisterLibFunc(&c_duckdb_value_float, handle, "duckdb_value_float")
	purego.RegisterLibFunc(&c_duckdb_value_double, handle, "duckdb_value_double")
	purego.RegisterLibFunc(&c_duckdb_value_varchar, handle, "duckdb_value_varchar")
	purego.RegisterLibFunc(&c_duckdb_prepare, handle, "duckdb_prepare")
	purego.RegisterLibFunc(&c_duckdb_prepare_error, handle, "duckdb_prepare_error")
	purego.RegisterLibFunc(&c_duckdb_nparams, handle, "duckdb_nparams")
	purego.RegisterLibFunc(&c_duckdb_bind_null, handle, "duckdb_bind_null")
	purego.RegisterLibFunc(&c_duckdb_bind_boolean, handle, "duckdb_bind_boolean")
	purego.RegisterLibFunc(&c_duckdb_bind_int64, handle, "duckdb_bind_int64")
	purego.RegisterLibFunc(&c_duckdb_bind_double, handle, "duckdb_bind_double")
	purego.RegisterLibFunc(&c_duckdb_bind_varchar, handle, "duckdb_bind_varchar")
	purego.RegisterLibFunc(&c_duckdb_execute_prepared, handle, "duckdb_execute_prepared")
	purego.RegisterLibFunc(&c_duckdb_destroy_prepare, handle, "duckdb_destroy_prepare")
	purego.RegisterLibFunc(&c_duckdb_free, handle, "duckdb_free")
}

// Helpers

func copyCString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	base := uintptr(p)
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(base + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	if n == 0 {
		return ""
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = *(*byte)(unsafe.Pointer(base + uintptr(i)))
	}
	return string(buf)
}

func cStringPtr(s string) (ptr unsafe.Pointer, keepAlive func()) {
	// Allocate Go memory with null terminator; valid during the call
	if len(s) == 0 {
		return nil, func() {}
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return unsafe.Pointer(&b[0]), func() { runtime.KeepAlive(b) }
}

// Go wrappers over imported C bindings

/** Get the library version string */
func duckdb_library_version() string {
	return copyCString(c_duckdb_library_version())
}

/** Create an empty configuration object */
func duckdb_create_config() (duckdbConfigHandle, error) {
	var cfg duckdbConfigHandle
	if c_duckdb_create_config(unsafe.Pointer(&cfg)) != duckdb_success {
		return nil, bridgeErr(OpenFailed, "failed to create database config")
	}
	return cfg, nil
}

/** Set a configuration option by name */
func duckdb_set_config(cfg duckdbConfigHandle, name, option string) error {
	if c_duckdb_set_config(unsafe.Pointer(cfg), name, option) != duckdb_success {
		return bridgeErr(OpenFailed, "invalid config option "+name)
	}
	return nil
}

/** Destroy a configuration object */
func duckdb_destroy_config(cfg duckdbConfigHandle) {
	if cfg == nil {
		return
	}
	c_duckdb_destroy_config(unsafe.Pointer(&cfg))
}

/** Open a database; empty path means in-memory */
func duckdb_open_ext(path string, cfg duckdbConfigHandle) (duckdbDatabaseHandle, error) {
	pathPtr, keepPath := cStringPtr(path)
	var db duckdbDatabaseHandle
	var cerr uintptr
	state := c_duckdb_open_ext(pathPtr, unsafe.Pointer(&db), unsafe.Pointer(cfg), unsafe.Pointer(&cerr))
	keepPath()
	if state != duckdb_success {
		msg := "failed to open database"
		if cerr != 0 {
			msg = copyCString(unsafe.Pointer(cerr))
			c_duckdb_free(unsafe.Pointer(cerr))
		}
		return nil, bridgeErr(OpenFailed, msg)
	}
	return db, nil
}

/** Close a database
 * SAFETY: caller must ensure no connection uses the database afterwards
 */
func duckdb_close(db duckdbDatabaseHandle) {
	if db == nil {
		return
	}
	c_duckdb_close(unsafe.Pointer(&db))
}

/** Create a connection to the database */
func duckdb_connect(db duckdbDatabaseHandle) (duckdbConnectionHandle, error) {
	var conn duckdbConnectionHandle
	if c_duckdb_connect(unsafe.Pointer(db), unsafe.Pointer(&conn)) != duckdb_success {
		return nil, bridgeErr(ConnectFailed, "failed to create connection")
	}
	return conn, nil
}

/** Close a connection */
func duckdb_disconnect(conn duckdbConnectionHandle) {
	if conn == nil {
		return
	}
	c_duckdb_disconnect(unsafe.Pointer(&conn))
}

/** Run a SQL string and leave the materialized result in res.
 * On error the result still must be destroyed after reading the message.
 */
func duckdb_query(conn duckdbConnectionHandle, sql string, res *c_duckdb_result_t) error {
	if c_duckdb_query(unsafe.Pointer(conn), sql, unsafe.Pointer(res)) != duckdb_success {
		msg := copyCString(c_duckdb_result_error(unsafe.Pointer(res)))
		c_duckdb_destroy_result(unsafe.Pointer(res))
		return bridgeErr(ExecutionFailed, msg)
	}
	return nil
}

/** Destroy a result and free engine-owned memory */
func duckdb_destroy_result(res *c_duckdb_result_t) {
	c_duckdb_destroy_result(unsafe.Pointer(res))
}

func duckdb_column_count(res *c_duckdb_result_t) int {
	return int(c_duckdb_column_count(unsafe.Pointer(res)))
}

func duckdb_row_count(res *c_duckdb_result_t) int64 {
	return int64(c_duckdb_row_count(unsafe.Pointer(res)))
}

func duckdb_rows_changed(res *c_duckdb_result_t) int64 {
	return int64(c_duckdb_rows_changed(unsafe.Pointer(res)))
}

/** Column name at index; the C string is owned by the result */
func duckdb_column_name(res *c_duckdb_result_t, col int) string {
	return copyCString(c_duckdb_column_name(unsafe.Pointer(res), uint64(col)))
}

func duckdb_column_type(res *c_duckdb_result_t, col int) duckdb_type_t {
	return c_duckdb_column_type(unsafe.Pointer(res), uint64(col))
}

func duckdb_value_is_null(res *c_duckdb_result_t, col, row int64) bool {
	return c_duckdb_value_is_null(unsafe.Pointer(res), uint64(col), uint64(row))
}

func duckdb_value_boolean(res *c_duckdb_result_t, col, row int64) bool {
	return c_duckdb_value_boolean(unsafe.Pointer(res), uint64(col), uint64(row))
}

func duckdb_value_int64(res *c_duckdb_result_t, col, row int64) int64 {
	return c_duckdb_value_int64(unsafe.Pointer(res), uint64(col), uint64(row))
}

func duckdb_value_uint64(res *c_duckdb_result_t, col, row int64) uint64 {
	return c_duckdb_value_uint64(unsafe.Pointer(res), uint64(col), uint64(row))
}

func duckdb_value_float(res *c_duckdb_result_t, col, row int64) float32 {
	return c_duckdb_value_float(unsafe.Pointer(res), uint64(col), uint64(row))
}

func duckdb_value_double(res *c_duckdb_result_t, col, row int64) float64 {
	return c_duckdb_value_double(unsafe.Pointer(res), uint64(col), uint64(row))
}

/** Value rendered through the engine's canonical textual form.
 * The returned C string is copied and freed with duckdb_free.
 */
func duckdb_value_varchar(res *c_duckdb_result_t, col, row int64) string {
	ptr := c_duckdb_value_varchar(unsafe.Pointer(res), uint64(col), uint64(row))
	if ptr == nil {
		return ""
	}
	defer c_duckdb_free(ptr)
	return copyCString(ptr)
}

/** Prepare a statement. On failure the diagnostic lives on the statement
 * object, which must still be destroyed.
 */
func duckdb_prepare(conn duckdbConnectionHandle, sql string) (duckdbPreparedHandle, error) {
	var stmt duckdbPreparedHandle
	if c_duckdb_prepare(unsafe.Pointer(conn), sql, unsafe.Pointer(&stmt)) != duckdb_success {
		msg := copyCString(c_duckdb_prepare_error(unsafe.Pointer(stmt)))
		duckdb_destroy_prepare(stmt)
		return nil, bridgeErr(PrepareFailed, msg)
	}
	return stmt, nil
}

func duckdb_prepare_error(stmt duckdbPreparedHandle) string {
	return copyCString(c_duckdb_prepare_error(unsafe.Pointer(stmt)))
}

/** Declared parameter count of a prepared statement */
func duckdb_nparams(stmt duckdbPreparedHandle) int {
	return int(c_duckdb_nparams(unsafe.Pointer(stmt)))
}

/** Bind a positional argument to a statement: NULL */
func duckdb_bind_null(stmt duckdbPreparedHandle, index int) duckdb_state_t {
	return c_duckdb_bind_null(unsafe.Pointer(stmt), uint64(index))
}

/** Bind a positional argument to a statement: BOOLEAN */
func duckdb_bind_boolean(stmt duckdbPreparedHandle, index int, value bool) duckdb_state_t {
	return c_duckdb_bind_boolean(unsafe.Pointer(stmt), uint64(index), value)
}

/** Bind a positional argument to a statement: BIGINT */
func duckdb_bind_int64(stmt duckdbPreparedHandle, index int, value int64) duckdb_state_t {
	return c_duckdb_bind_int64(unsafe.Pointer(stmt), uint64(index), value)
}

/** Bind a positional argument to a statement: DOUBLE */
func duckdb_bind_double(stmt duckdbPreparedHandle, index int, value float64) duckdb_state_t {
	return c_duckdb_bind_double(unsafe.Pointer(stmt), uint64(index), value)
}

/** Bind a positional argument to a statement: VARCHAR */
func duckdb_bind_varchar(stmt duckdbPreparedHandle, index int, value string) duckdb_state_t {
	return c_duckdb_bind_varchar(unsafe.Pointer(stmt), uint64(index), value)
}

/** Execute a prepared statement with its currently bound values */
func duckdb_execute_prepared(stmt duckdbPreparedHandle, res *c_duckdb_result_t) error {
	if c_duckdb_execute_prepared(unsafe.Pointer(stmt), unsafe.Pointer(res)) != duckdb_success {
		msg := copyCString(c_duckdb_result_error(unsafe.Pointer(res)))
		c_duckdb_destroy_result(unsafe.Pointer(res))
		return bridgeErr(ExecutionFailed, msg)
	}
	return nil
}

/** Destroy a prepared statement */
func duckdb_destroy_prepare(stmt duckdbPreparedHandle) {
	if stmt == nil {
		return
	}
	c_duckdb_destroy_prepare(unsafe.Pointer(&stmt))
}
