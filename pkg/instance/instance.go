package instance

import (
	"os"

	"github.com/0x360x36/miauhome.cl/pkg/env"
)

// GetID returns an identifier for this storefront process.
func GetID() string {
	if id := env.First("", "MIAUHOME_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "storefront-0"
}
