package devices

import (
	"testing"
	"time"

	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/pkg/models"
)

func TestMemDeviceRepository_NotFound(t *testing.T) {
	r := NewMemDeviceRepository()
	_, err := r.Get("missing")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

func TestMemDeviceRepository_ListEnabled(t *testing.T) {
	r := NewMemDeviceRepository()
	_ = r.Upsert(models.Device{DeviceID: "d1", Enabled: true})
	_ = r.Upsert(models.Device{DeviceID: "d2", Enabled: false})

	enabled, err := r.ListEnabled()
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 1 || enabled[0].DeviceID != "d1" {
		t.Fatalf("expected only d1 enabled, got %+v", enabled)
	}
}

func TestStatusMonitor_FiresOfflineCallback(t *testing.T) {
	r := NewMemDeviceRepository()
	_ = r.Upsert(models.Device{DeviceID: "d1", Enabled: true, LastSeenMs: 0})

	m := NewStatusMonitor(r, 5*time.Second)
	var gotOnline bool
	var called bool
	m.OnStatusChange(func(deviceID string, online bool) {
		called = true
		gotOnline = online
	})

	m.check(10_000)

	if !called {
		t.Fatal("expected status callback to fire")
	}
	if gotOnline {
		t.Error("expected device flagged offline after exceeding threshold")
	}
}
