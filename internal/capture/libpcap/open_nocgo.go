//go:build !cgo

package libpcap

import (
	"fmt"

	"nidwatch/internal/models"
)

// OpenOffline reports that libpcap is not compiled in.
func OpenOffline(string) (Source, error) {
	return nil, fmt.Errorf("%w: libpcap requires a cgo build", models.ErrToolUnavailable)
}
