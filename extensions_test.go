package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExtensionsAll(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{"LOAD spatial": {}, "LOAD duckpgq": {}})
	report := loadExtensions(db, []string{"spatial", "duckpgq"})
	assert.NoError(t, report.Err)
	assert.Equal(t, []string{"spatial", "duckpgq"}, report.Loaded)
	assert.Equal(t, map[string]bool{"spatial": true, "duckpgq": true}, report.loadedSet())
	require.Len(t, db.sessions, 1)
	assert.True(t, db.sessions[0].closed, "loader session must be closed")
}

func TestLoadExtensionsPartialFailure(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{"LOAD spatial": {}})
	report := loadExtensions(db, []string{"nope", "spatial"})

	assert.Equal(t, []string{"spatial"}, report.Loaded, "failure of one extension must not stop the rest")
	require.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "nope")
}

func TestLoadExtensionsOpenStillUsable(t *testing.T) {
	db := newFakeDB(map[string]fakeCall{
		"SELECT 1": {cols: []Column{{Name: "1", Class: ClassSigned}}, rows: [][]Cell{{intCell(1)}}},
	})
	r := NewRegistry(db.opener(), []string{"not_a_real_extension"})

	h, err := r.OpenDatabase("main", "")
	require.NoError(t, err, "open must tolerate a missing extension")
	conn, err := r.Connect(h)
	require.NoError(t, err)

	err = r.withSession(conn, func(s EngineSession) error {
		res, err := s.Query("SELECT 1")
		if err != nil {
			return err
		}
		res.Close()
		return nil
	})
	assert.NoError(t, err, "unrelated query must still succeed")
}

func TestLoadExtensionsNoSession(t *testing.T) {
	db := newFakeDB(nil)
	db.connectErr = bridgeErr(ConnectFailed, "no sessions")
	report := loadExtensions(db, []string{"spatial"})
	assert.Error(t, report.Err)
	assert.Empty(t, report.Loaded)
}

func TestLoadExtensionsEmptyList(t *testing.T) {
	db := newFakeDB(nil)
	report := loadExtensions(db, nil)
	assert.NoError(t, report.Err)
	assert.Empty(t, db.sessions, "no session for an empty list")
}
