package runtime

// ConfigurationError signals the dispatcher is missing required wiring, such
// as the runtime base URL. It is never retried.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "runtime: " + e.Message
}

// DispatchError signals a command failed to reach the runtime or the runtime
// rejected it. Retryable marks transport failures and the retryable 5xx set.
type DispatchError struct {
	Message    string
	StatusCode int
	Code       ErrorCode
	Retryable  bool
}

func (e *DispatchError) Error() string {
	return "runtime: dispatch failed: " + e.Message
}
