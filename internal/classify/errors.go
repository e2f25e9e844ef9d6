package classify

import "fmt"

// ConfigError reports an invalid pipeline parameter. It is returned only
// from New, before any work starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("classify: invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError reports that the expensive strategy failed its
// availability check while the on_unavailable policy is set to abort.
type UnavailableError struct {
	Strategy string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("classify: strategy %q is unavailable", e.Strategy)
}
