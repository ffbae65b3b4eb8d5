package instance

import (
	"os"
	"strings"
)

// GetID names the running replica for log correlation. Explicit
// configuration wins over platform-provided identifiers, then the hostname.
func GetID() string {
	for _, key := range []string{"ZEROHUNGER_INSTANCE_ID", "K_REVISION", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
