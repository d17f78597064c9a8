package chat

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("message not found")
	ErrNoPrecedingUserMessage = errors.New("no preceding user message")
	ErrNotAssistantMessage    = errors.New("only assistant messages can be regenerated")
)

// NotFoundError names the id or index that could not be resolved.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %s not found", e.Ref)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CompletionError wraps a failure of the external completion provider.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion provider: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
