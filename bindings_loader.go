// Shared-library discovery for the DuckDB engine.
//
// The library is resolved lazily on first use rather than in an init func so
// that code paths which never touch the engine (and the test suite on
// machines without libduckdb) do not require the native library. Resolution
// order: DUCKDB_LIB_PATH env var, then a DUCKDB_LIB_DIR-relative name, then
// the platform's default search path via the plain soname.
package duckdb

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

var (
	loadLibOnce sync.Once
	loadLibErr  error
)

func libraryName() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return "libduckdb.dylib"
	default:
		return "libduckdb.so"
	}
}

// loadDuckDB resolves and dlopens the engine library once per process and
// registers the extern methods. Safe to call from multiple goroutines.
func loadDuckDB() error {
	loadLibOnce.Do(func() {
		var candidates []string
		if p := os.Getenv("DUCKDB_LIB_PATH"); p != "" {
			candidates = append(candidates, p)
		}
		if d := os.Getenv("DUCKDB_LIB_DIR"); d != "" {
			candidates = append(candidates, filepath.Join(d, libraryName()))
		}
		candidates = append(candidates, libraryName())

		var lastErr error
		for _, c := range candidates {
			handle, err := purego.Dlopen(c, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if err != nil {
				lastErr = err
				continue
			}
			register_duckdb(handle)
			return
		}
		loadLibErr = fmt.Errorf("unable to load duckdb library (tried %v): %w", candidates, lastErr)
	})
	return loadLibErr
}
