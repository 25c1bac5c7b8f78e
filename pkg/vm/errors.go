package vm

import "fmt"

// VmParseError is raised by the Parser when the VM IR input cannot be read, fails to match
// the expected grammar, or the resulting AST contains a node the traversal does not recognize.
type VmParseError struct {
	reason string
}

func (e VmParseError) Error() string {
	return fmt.Sprintf("vm parse error: %s", e.reason)
}
