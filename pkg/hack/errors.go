package hack

import "fmt"

// AssembleError is raised by the Code Generator when an instruction cannot be translated to
// its binary counterpart: an unresolved label, an out-of-bound address, or an unknown mnemonic.
type AssembleError struct {
	reason string
}

func (e AssembleError) Error() string {
	return fmt.Sprintf("assemble error: %s", e.reason)
}
