package validators

import (
	"github.com/gate4ai/toolgate/shared"
	"github.com/gate4ai/toolgate/shared/config"
)

// CreateDefaultValidators returns the standard set of validators configured
// from cfg, falling back to package defaults when a setting is unreadable.
func CreateDefaultValidators(cfg config.IConfig) []shared.RequestValidator {
	rps, err := cfg.ThrottlingRPS()
	if err != nil {
		rps = config.DefaultThrottlingRPS
	}
	rpm, err := cfg.ThrottlingRPM()
	if err != nil {
		rpm = config.DefaultThrottlingRPM
	}
	maxSize, err := cfg.MaxRequestSize()
	if err != nil {
		maxSize = config.DefaultMaxRequestSize
	}
	return []shared.RequestValidator{
		NewThrottling(rps, rpm),
		NewRequestSizeValidator(maxSize),
	}
}
