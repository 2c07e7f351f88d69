package duckdb

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOpenIdempotent(t *testing.T) {
	db := newFakeDB(nil)
	r := NewRegistry(db.opener(), nil)

	h1, err := r.OpenDatabase("main", "/data/main.duckdb")
	require.NoError(t, err)
	h2, err := r.OpenDatabase("main", "/data/main.duckdb")
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "reopen must return the existing handle")
	assert.Len(t, r.Names(), 1)
}

func TestRegistryAnonymousOpensAreDistinct(t *testing.T) {
	db := newFakeDB(nil)
	r := NewRegistry(db.opener(), nil)

	h1, err := r.OpenDatabase("", "")
	require.NoError(t, err)
	h2, err := r.OpenDatabase("", "")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Empty(t, r.Names(), "anonymous databases are not name-registered")
}

func TestRegistryOpenFailure(t *testing.T) {
	r := NewRegistry(func(string) (EngineDatabase, error) {
		return nil, bridgeErr(OpenFailed, "IO Error: disk full")
	}, nil)

	h, err := r.OpenDatabase("main", "/data/main.duckdb")
	require.Error(t, err)
	assert.Equal(t, Handle(0), h)
	assert.Equal(t, OpenFailed, KindOf(err))
	assert.Contains(t, err.Error(), "disk full", "engine diagnostic must survive verbatim")
	assert.Empty(t, r.Names(), "no handle registered on failure")
}

func TestRegistryCloseRejectsLiveConnections(t *testing.T) {
	db := newFakeDB(nil)
	r := NewRegistry(db.opener(), nil)

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err)
	conn, err := r.Connect(h)
	require.NoError(t, err)

	err = r.CloseDatabase(h)
	require.Error(t, err, "close with a live connection must fail")

	require.NoError(t, r.Disconnect(conn))
	require.NoError(t, r.CloseDatabase(h))
	assert.True(t, db.closed)
}

func TestRegistryHandlesNeverReused(t *testing.T) {
	db := newFakeDB(nil)
	r := NewRegistry(db.opener(), nil)

	h1, err := r.OpenDatabase("a", "")
	require.NoError(t, err)
	require.NoError(t, r.CloseDatabase(h1))

	h2, err := r.OpenDatabase("b", "")
	require.NoError(t, err)
	assert.Greater(t, h2, h1)

	// stale handle misses cleanly
	_, err = r.Connect(h1)
	assert.Equal(t, NotOpen, KindOf(err))
}

func TestRegistryDisconnectDestroysStatements(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{"SELECT ?": {nparams: 1, echo: true}})
	r := NewRegistry(db.opener(), nil)

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err)
	conn, err := r.Connect(h)
	require.NoError(t, err)
	stmt, err := r.Prepare(conn, "SELECT ?")
	require.NoError(t, err)

	require.NoError(t, r.Disconnect(conn))

	err = r.withStatement(stmt, func(*preparedStatement) error { return nil })
	assert.Equal(t, NotOpen, KindOf(err), "statement must die with its connection")
	err = r.withSession(conn, func(EngineSession) error { return nil })
	assert.Equal(t, NotOpen, KindOf(err))
	require.Len(t, db.sessions, 1)
	assert.True(t, db.sessions[0].closed)
}

func TestRegistryPrepareFailureRegistersNothing(t *testing.T) {
	db := newFakeDB(nil) // nothing scripted, every prepare fails
	r := NewRegistry(db.opener(), nil)

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err)
	conn, err := r.Connect(h)
	require.NoError(t, err)

	sh, err := r.Prepare(conn, "SELECT bogus")
	require.Error(t, err)
	assert.Equal(t, Handle(0), sh)

	r.mu.Lock()
	assert.Empty(t, r.stmts)
	r.mu.Unlock()
}

func TestRegistryConcurrentSameConnection(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{"SELECT 1": {cols: []Column{{Name: "1", Class: ClassSigned}}, rows: [][]Cell{{intCell(1)}}}})
	r := NewRegistry(db.opener(), nil)

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err)
	conn, err := r.Connect(h)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.withSession(conn, func(s EngineSession) error {
				res, err := s.Query("SELECT 1")
				if err != nil {
					return err
				}
				res.Close()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.NoError(t, r.Disconnect(conn))
}

func TestRegistryCloseNameTearsDownEverything(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{"SELECT ?": {nparams: 1, echo: true}})
	r := NewRegistry(db.opener(), nil)

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err)
	conn, err := r.Connect(h)
	require.NoError(t, err)
	_, err = r.Prepare(conn, "SELECT ?")
	require.NoError(t, err)

	require.NoError(t, r.CloseName("main"))
	assert.True(t, db.closed)
	assert.Empty(t, r.Names())

	assert.Equal(t, NotOpen, KindOf(r.CloseName("main")))
}

func TestRegistryHasExtension(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{"LOAD spatial": {}})
	r := NewRegistry(db.opener(), []string{"spatial", "missing"})

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err)
	assert.True(t, r.HasExtension(h, "spatial"))
	assert.False(t, r.HasExtension(h, "missing"))
	assert.False(t, r.HasExtension(h+100, "spatial"))
}
