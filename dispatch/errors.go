package dispatch

import (
	"errors"
	"fmt"
)

// ErrAlreadyInitialized is returned by a second call to Initialize.
var ErrAlreadyInitialized = errors.New("dispatch: dispatcher already initialized")

// ErrDisposed is returned by Initialize on a disposed dispatcher.
var ErrDisposed = errors.New("dispatch: dispatcher disposed")

// ConfigErrorCode categorizes construction-time configuration errors.
type ConfigErrorCode string

const (
	// CodeMissingRouter indicates no router was supplied.
	CodeMissingRouter ConfigErrorCode = "MISSING_ROUTER"

	// CodeMissingStore indicates no store was supplied.
	CodeMissingStore ConfigErrorCode = "MISSING_STORE"

	// CodeMissingModelID indicates the store carries an empty model id.
	CodeMissingModelID ConfigErrorCode = "MISSING_MODEL_ID"

	// CodeBadProcessor indicates a nil pre- or post-processor was
	// supplied explicitly.
	CodeBadProcessor ConfigErrorCode = "BAD_PROCESSOR"

	// CodeBadRegistration indicates an invalid handler, model or stream
	// registration.
	CodeBadRegistration ConfigErrorCode = "BAD_REGISTRATION"

	// CodeSliceConflict indicates a reducer-owned slice and an
	// external-model slice collide for the same event type.
	CodeSliceConflict ConfigErrorCode = "SLICE_CONFLICT"
)

// ConfigError is a fatal construction-time error. A dispatcher whose
// constructor returned a ConfigError is not usable.
type ConfigError struct {
	Code    ConfigErrorCode
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("dispatch: %s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("dispatch: %s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
