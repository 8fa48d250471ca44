package observability

import (
	"errors"

	"github.com/aretw0/reqtrace/pkg/tracer"
)

func isCallbackError(err error) bool {
	var cbErr *tracer.CallbackError
	return errors.As(err, &cbErr)
}
