package dflow

// ExecutionContext carries the reaching definitions at the current
// program point while the transfer functions walk a basic block.
type ExecutionContext struct {
	definitions ReachingDefinitions
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{}
}

// Definitions returns the definitions reaching the current program point.
func (c *ExecutionContext) Definitions() *ReachingDefinitions {
	return &c.definitions
}
