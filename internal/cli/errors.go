package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// rejectedError is a change the board refused, e.g. a recipe already in the target group.
type rejectedError struct {
	op     string
	reason string
}

func (e rejectedError) Error() string {
	op := e.op
	if op == "" {
		op = "move"
	}
	return op + " rejected: " + e.reason
}
