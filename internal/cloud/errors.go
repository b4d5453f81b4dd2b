package cloud

import "fmt"

// RemoteOpError is the uniform failure shape for gateway calls: the operation
// that failed plus the provider-supplied message.
type RemoteOpError struct {
	Op  string
	Err error
}

func (e *RemoteOpError) Error() string {
	return fmt.Sprintf("remote operation %s failed: %v", e.Op, e.Err)
}

func (e *RemoteOpError) Unwrap() error { return e.Err }

// WrapOp tags err with the operation name, passing nil through.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteOpError{Op: op, Err: err}
}
