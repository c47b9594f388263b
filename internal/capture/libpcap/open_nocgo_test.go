//go:build !cgo

package libpcap

import (
	"context"
	"errors"
	"testing"
	"time"

	"nidwatch/internal/models"
)

func TestOpenOfflineWithoutCgo(t *testing.T) {
	if _, err := OpenOffline("capture.pcap"); !errors.Is(err, models.ErrToolUnavailable) {
		t.Fatalf("err = %v, want ErrToolUnavailable", err)
	}
	_, err := New(true, time.Second).Extract(context.Background(), "capture.pcap")
	if !errors.Is(err, models.ErrToolUnavailable) {
		t.Fatalf("Extract err = %v, want ErrToolUnavailable", err)
	}
}
