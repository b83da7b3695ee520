package validators

import (
	"sync"

	"github.com/gate4ai/toolgate/shared"
)

// RequestSizeValidator validates the size of incoming invocations
type RequestSizeValidator struct {
	maxSize int64
	mu      sync.RWMutex
}

// NewRequestSizeValidator creates a new request size validator
func NewRequestSizeValidator(maxSize int64) *RequestSizeValidator {
	return &RequestSizeValidator{
		maxSize: maxSize,
	}
}

// SetMaxSize updates the maximum allowed request size
func (v *RequestSizeValidator) SetMaxSize(maxSize int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.maxSize = maxSize
}

// Validate implements the RequestValidator interface
func (v *RequestSizeValidator) Validate(req *shared.CallRequest) error {
	if len(req.ID) >= 256 {
		return shared.NewError(shared.ErrorValidation, "invocation ID exceeds maximum allowed length (256 bytes)")
	}
	if req.Arguments == nil {
		return nil
	}

	v.mu.RLock()
	maxSize := v.maxSize
	v.mu.RUnlock()

	if size := int64(len(shared.CanonicalJSON(req.Arguments))); size > maxSize {
		return shared.NewError(shared.ErrorValidation,
			"request of %d bytes exceeds maximum allowed size of %d", size, maxSize).
			WithSuggestion("trim the arguments or split the request")
	}
	return nil
}
