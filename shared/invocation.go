package shared

// CallRequest is a single named-operation invocation crossing the gateway
// boundary. The transport that produced it is not this package's concern.
type CallRequest struct {
	// ID is the invocation id; the gateway assigns one when empty.
	ID string
	// CallerID keys rate limiting and auditing. Empty means anonymous, and
	// anonymous callers share one throttling bucket.
	CallerID  string
	Operation string
	Arguments Arguments
}

// RequestValidator checks an invocation before dispatch. Validation errors
// are surfaced immediately and never retried.
type RequestValidator interface {
	Validate(req *CallRequest) error
}
