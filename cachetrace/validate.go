package cachetrace

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/core"
)

// ErrMisconfiguredOperation reports an operation table entry that does not
// match the RemoteCache method it names.
var ErrMisconfiguredOperation = errors.New("misconfigured cache operation")

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	pendingType = reflect.TypeOf((*cache.Pending)(nil)).Elem()
)

// ValidateOperations checks the operation table against RemoteCache[V].
// Install calls it once per wiring.
func ValidateOperations[V any]() error {
	return validateOperations(reflect.TypeOf((*cache.RemoteCache[V])(nil)).Elem(), operations)
}

// validateOperations checks each operation against the method of surface
// with the same name:
//   - the method exists and takes a context.Context first
//   - Batch operations take a slice, map or array right after the context
//   - Async operations return a single cache.Pending value
//   - Sync operations return an error last
func validateOperations(surface reflect.Type, ops []Operation) error {
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if seen[op.Method] {
			return misconfigured(op, "listed twice")
		}
		seen[op.Method] = true

		m, ok := surface.MethodByName(op.Method)
		if !ok {
			return misconfigured(op, "method not found on "+surface.String())
		}
		ft := m.Type
		if ft.NumIn() == 0 || ft.In(0) != contextType {
			return misconfigured(op, "first parameter is not a context.Context")
		}

		switch op.Target {
		case Single:
		case Batch:
			if ft.NumIn() < 2 {
				return misconfigured(op, "batch operation has no collection parameter")
			}
			switch ft.In(1).Kind() {
			case reflect.Slice, reflect.Map, reflect.Array:
			default:
				return misconfigured(op, fmt.Sprintf("batch parameter is %s, not a collection", ft.In(1)))
			}
		default:
			return misconfigured(op, "unknown target")
		}

		switch op.Mode {
		case Sync:
			if ft.NumOut() == 0 || ft.Out(ft.NumOut()-1) != errorType {
				return misconfigured(op, "sync operation does not return an error")
			}
		case Async:
			if ft.NumOut() != 1 || !ft.Out(0).Implements(pendingType) {
				return misconfigured(op, "async operation does not return a pending result")
			}
		default:
			return misconfigured(op, "unknown mode")
		}
	}
	return nil
}

func misconfigured(op Operation, msg string) error {
	return &core.FrameworkError{
		Op:      "cachetrace.ValidateOperations",
		Kind:    "config",
		ID:      op.Method,
		Message: msg,
		Err:     ErrMisconfiguredOperation,
	}
}
