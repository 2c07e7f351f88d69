package duckdb

import (
	"fmt"
	"log"
	"sync"
)

// Handle is the opaque identifier handed across the bridge boundary.
// Zero is reserved as the invalid handle. Handles are drawn from a
// monotonically increasing counter and never reused within a registry's
// lifetime, so a stale handle can only miss, never alias.
type Handle uint64

type dbEntry struct {
	name       string
	path       string
	db         EngineDatabase
	extensions map[string]bool // extension -> loaded
	conns      int             // live connections derived from this database
}

type connEntry struct {
	mu      sync.Mutex // serializes all engine calls on this session
	session EngineSession
	db      Handle
	closed  bool
	stmts   map[Handle]struct{}
}

type stmtEntry struct {
	conn Handle
	prep *preparedStatement
}

// Registry owns every live native object behind its handle. Callers hold
// only Handle values. The registry is the single serialization point for
// handle-table mutation; per-connection engine calls serialize on the
// connection's own mutex so independent databases proceed in parallel.
type Registry struct {
	open       EngineOpener
	extensions []string

	mu     sync.Mutex
	seq    Handle
	byName map[string]Handle
	dbs    map[Handle]*dbEntry
	conns  map[Handle]*connEntry
	stmts  map[Handle]*stmtEntry
}

// NewRegistry builds a registry over the given engine opener. extensions is
// the fixed list activated at every database open.
func NewRegistry(open EngineOpener, extensions []string) *Registry {
	return &Registry{
		open:       open,
		extensions: extensions,
		byName:     map[string]Handle{},
		dbs:        map[Handle]*dbEntry{},
		conns:      map[Handle]*connEntry{},
		stmts:      map[Handle]*stmtEntry{},
	}
}

func (r *Registry) next() Handle {
	r.seq++
	return r.seq
}

// OpenDatabase opens the engine for the logical name, loading the fixed
// extension list before the handle becomes visible. Reopening an already
// registered name returns the existing handle. An empty name opens an
// anonymous database: never shared, never idempotent.
func (r *Registry) OpenDatabase(name, path string) (Handle, error) {
	if name != "" {
		r.mu.Lock()
		if h, ok := r.byName[name]; ok {
			r.mu.Unlock()
			log.Printf("[DEBUG] database already open: %s", name)
			return h, nil
		}
		r.mu.Unlock()
	}

	// engine construction and extension loading happen outside the table
	// lock; registration below re-checks for a concurrent open
	db, err := r.open(path)
	if err != nil {
		return 0, err
	}
	report := loadExtensions(db, r.extensions)

	r.mu.Lock()
	defer r.mu.Unlock()
	if name != "" {
		if h, ok := r.byName[name]; ok {
			db.Close()
			return h, nil
		}
	}
	h := r.next()
	if name != "" {
		r.byName[name] = h
	}
	r.dbs[h] = &dbEntry{name: name, path: path, db: db, extensions: report.loadedSet()}
	log.Printf("[INFO] database opened: %s (handle %d)", name, h)
	return h, nil
}

// CloseDatabase destroys exactly one database-level identity. Destruction
// order is checked, not assumed: live connections fail the close.
func (r *Registry) CloseDatabase(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.dbs[h]
	if !ok {
		return bridgeErr(NotOpen, "database handle is not open")
	}
	if e.conns > 0 {
		return bridgeErr(ExecutionFailed, fmt.Sprintf("database %q has %d open connections", e.name, e.conns))
	}
	delete(r.dbs, h)
	delete(r.byName, e.name)
	e.db.Close()
	log.Printf("[INFO] database closed: %s", e.name)
	return nil
}

// Connect opens a session on the database behind h.
func (r *Registry) Connect(h Handle) (Handle, error) {
	r.mu.Lock()
	e, ok := r.dbs[h]
	if !ok {
		r.mu.Unlock()
		return 0, bridgeErr(NotOpen, "database handle is not open")
	}
	// hold the table lock across Connect so a concurrent CloseDatabase
	// cannot observe conns==0 while a session is being created
	session, err := e.db.Connect()
	if err != nil {
		r.mu.Unlock()
		return 0, &Error{Kind: ConnectFailed, Message: err.Error()}
	}
	e.conns++
	ch := r.next()
	r.conns[ch] = &connEntry{session: session, db: h, stmts: map[Handle]struct{}{}}
	r.mu.Unlock()
	return ch, nil
}

// Disconnect destroys a session and, first, every statement prepared on it.
func (r *Registry) Disconnect(h Handle) error {
	r.mu.Lock()
	e, ok := r.conns[h]
	if !ok {
		r.mu.Unlock()
		return bridgeErr(NotOpen, "connection handle is not open")
	}
	delete(r.conns, h)
	stmts := make([]*stmtEntry, 0, len(e.stmts))
	for sh := range e.stmts {
		if se, ok := r.stmts[sh]; ok {
			stmts = append(stmts, se)
			delete(r.stmts, sh)
		}
	}
	if de, ok := r.dbs[e.db]; ok {
		de.conns--
	}
	r.mu.Unlock()

	// wait out any in-flight call on this session before tearing it down
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for _, se := range stmts {
		se.prep.Close()
	}
	e.session.Close()
	return nil
}

// Prepare parses sql on the connection and registers a statement handle.
func (r *Registry) Prepare(h Handle, sql string) (Handle, error) {
	r.mu.Lock()
	e, ok := r.conns[h]
	r.mu.Unlock()
	if !ok {
		return 0, bridgeErr(NotOpen, "connection handle is not open")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, bridgeErr(NotOpen, "connection handle is not open")
	}
	stmt, err := e.session.Prepare(sql)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sh := r.next()
	r.stmts[sh] = &stmtEntry{conn: h, prep: newPreparedStatement(stmt)}
	e.stmts[sh] = struct{}{}
	return sh, nil
}

// DestroyStatement removes and closes one prepared statement.
func (r *Registry) DestroyStatement(h Handle) error {
	r.mu.Lock()
	se, ok := r.stmts[h]
	if !ok {
		r.mu.Unlock()
		return bridgeErr(NotOpen, "statement handle is not open")
	}
	delete(r.stmts, h)
	ce := r.conns[se.conn]
	if ce != nil {
		delete(ce.stmts, h)
	}
	r.mu.Unlock()

	if ce != nil {
		ce.mu.Lock()
		defer ce.mu.Unlock()
	}
	se.prep.Close()
	return nil
}

// withSession runs f with exclusive use of the session behind h. The closed
// flag is re-checked under the session lock so a lookup can never race a
// concurrent Disconnect into a use-after-close.
func (r *Registry) withSession(h Handle, f func(EngineSession) error) error {
	r.mu.Lock()
	e, ok := r.conns[h]
	r.mu.Unlock()
	if !ok {
		return bridgeErr(NotOpen, "connection handle is not open")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return bridgeErr(NotOpen, "connection handle is not open")
	}
	return f(e.session)
}

// withStatement runs f with exclusive use of the statement behind h,
// serialized on the owning connection.
func (r *Registry) withStatement(h Handle, f func(*preparedStatement) error) error {
	r.mu.Lock()
	se, ok := r.stmts[h]
	var ce *connEntry
	if ok {
		ce = r.conns[se.conn]
	}
	r.mu.Unlock()
	if !ok || ce == nil {
		return bridgeErr(NotOpen, "statement handle is not open")
	}
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if ce.closed {
		return bridgeErr(NotOpen, "statement handle is not open")
	}
	return f(se.prep)
}

// HasExtension reports whether the named extension loaded when the database
// behind h was opened.
func (r *Registry) HasExtension(h Handle, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.dbs[h]
	return ok && e.extensions[name]
}

// CloseName tears down everything registered under the logical name, in
// order: statements, then connections, then the database.
func (r *Registry) CloseName(name string) error {
	r.mu.Lock()
	h, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return bridgeErr(NotOpen, "database not open: "+name)
	}
	var connHandles []Handle
	for ch, ce := range r.conns {
		if ce.db == h {
			connHandles = append(connHandles, ch)
		}
	}
	r.mu.Unlock()

	for _, ch := range connHandles {
		if err := r.Disconnect(ch); err != nil {
			log.Printf("[WARN] disconnect during close of %s: %v", name, err)
		}
	}
	return r.CloseDatabase(h)
}

// Names lists the logical names currently open.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
