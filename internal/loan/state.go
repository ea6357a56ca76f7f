package loan

import "fmt"

type Operation string

const (
	OpApprove Operation = "approve"
	OpReject  Operation = "reject"
	OpCancel  Operation = "cancel"
	OpReturn  Operation = "return"
)

type edge struct {
	from Status
	to   Status
}

var transitions = map[Operation]edge{
	OpApprove: {from: StatusReserved, to: StatusLoaned},
	OpReject:  {from: StatusReserved, to: StatusCancelled},
	OpCancel:  {from: StatusReserved, to: StatusCancelled},
	OpReturn:  {from: StatusLoaned, to: StatusReturned},
}

// StateError reports an operation attempted on a loan whose current status
// does not allow it.
type StateError struct {
	Op      Operation
	Current Status
}

func (e *StateError) Error() string {
	switch e.Current {
	case StatusLoaned:
		return "already loaned"
	case StatusCancelled:
		return "already cancelled"
	case StatusReturned:
		return "already returned"
	case StatusReserved:
		return "loan request has not been approved yet"
	}
	return fmt.Sprintf("cannot %s a loan in status %q", e.Op, e.Current)
}

func (e *StateError) Is(target error) bool {
	return target == ErrStateConflict
}

// checkTransition returns the target status of op from current.
func checkTransition(op Operation, current Status) (Status, error) {
	e, ok := transitions[op]
	if !ok {
		return "", fmt.Errorf("unknown operation %q", op)
	}
	if current != e.from {
		return "", &StateError{Op: op, Current: current}
	}
	return e.to, nil
}
