package workflow

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PanicError is returned by RunInTransaction when fn panicked. The
// transaction has been rolled back by then.
type PanicError struct {
	Value any
	Stack []byte
	cause error
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic in transaction: %v", e.Value) }

func (e *PanicError) Unwrap() error { return e.cause }

// RunInTransaction runs fn inside one database transaction. Any error or
// panic rolls back everything fn wrote. A panic comes back as *PanicError
// carrying a stack trace.
func RunInTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack(), cause: errors.Errorf("panic: %v", r)}
		}
	}()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

// StackTrace renders the stack of err: the goroutine stack for a recovered
// panic, the creation stack for github.com/pkg/errors values, and just the
// message otherwise.
func StackTrace(err error) string {
	if err == nil {
		return ""
	}
	var pe *PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		return pe.Error() + "\n" + string(pe.Stack)
	}
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var st stackTracer
	if errors.As(err, &st) {
		return fmt.Sprintf("%s%+v", err.Error(), st.StackTrace())
	}
	return err.Error()
}
