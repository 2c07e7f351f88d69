package duckdb

import "fmt"

// preparedStatement pairs an engine statement with its pending bindings.
// The store starts at the statement's declared parameter count and grows on
// demand when a caller binds beyond it; new slots are null. Indexing is
// 1-based at the API surface.
type preparedStatement struct {
	stmt     EngineStatement
	bindings []ParameterValue
}

func newPreparedStatement(stmt EngineStatement) *preparedStatement {
	return &preparedStatement{
		stmt:     stmt,
		bindings: make([]ParameterValue, stmt.ParameterCount()),
	}
}

// Bind stores value at the 1-based index, growing the store if the index
// exceeds its current size. index < 1 is rejected without mutating state.
func (p *preparedStatement) Bind(index int, value ParameterValue) error {
	if index < 1 {
		return bridgeErr(InvalidParameterIndex, fmt.Sprintf("parameter index %d is invalid (must be >= 1)", index))
	}
	idx := index - 1
	if idx >= len(p.bindings) {
		grown := make([]ParameterValue, index)
		copy(grown, p.bindings)
		p.bindings = grown
	}
	p.bindings[idx] = value
	return nil
}

// ClearBindings resets every allocated slot to null. The store keeps its
// size so a statement can be re-bound and re-executed without re-growing.
func (p *preparedStatement) ClearBindings() {
	for i := range p.bindings {
		p.bindings[i] = ParameterValue{}
	}
}

// Execute passes the full binding vector to the engine. The statement stays
// valid on failure so the caller may clear and rebind.
func (p *preparedStatement) Execute() (EngineResult, error) {
	return p.stmt.Execute(p.bindings)
}

func (p *preparedStatement) Close() {
	p.stmt.Close()
}
