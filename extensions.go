package duckdb

import (
	"fmt"
	"log"

	"github.com/hashicorp/go-multierror"
)

// DefaultExtensions is the fixed extension set activated at database open.
var DefaultExtensions = []string{"spatial", "duckpgq"}

// LoadReport records the per-extension outcome of an open-time load pass.
// A missing or broken extension never fails the open; Err collects every
// individual failure for diagnostics.
type LoadReport struct {
	Loaded []string
	Err    error
}

func (r LoadReport) loadedSet() map[string]bool {
	set := make(map[string]bool, len(r.Loaded))
	for _, n := range r.Loaded {
		set[n] = true
	}
	return set
}

// loadExtensions activates each named extension on a throwaway session.
// Failures are logged and accumulated, never propagated: a database without
// spatial support still opens and serves plain SQL.
func loadExtensions(db EngineDatabase, names []string) LoadReport {
	var report LoadReport
	if len(names) == 0 {
		return report
	}
	session, err := db.Connect()
	if err != nil {
		report.Err = fmt.Errorf("extension session: %w", err)
		log.Printf("[WARN] extension loading skipped: %v", err)
		return report
	}
	defer session.Close()

	for _, name := range names {
		res, err := session.Query("LOAD " + name)
		if err != nil {
			report.Err = multierror.Append(report.Err, fmt.Errorf("load %s: %w", name, err))
			log.Printf("[WARN] extension %s not loaded: %v", name, err)
			continue
		}
		res.Close()
		report.Loaded = append(report.Loaded, name)
		log.Printf("[DEBUG] extension loaded: %s", name)
	}
	return report
}
