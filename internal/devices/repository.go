// Package devices implements the device/tag repository contracts and
// a heartbeat-derived online/offline status monitor, grounded on the
// teacher's Registry (internal/devices/registry.go) and generalized
// to the Device/Tag shapes of pkg/models.
package devices

import (
	"sync"
	"time"

	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/pkg/models"
)

// DeviceRepository is the contract for device metadata lookup.
type DeviceRepository interface {
	Get(deviceID string) (models.Device, error)
	ListEnabled() ([]models.Device, error)
	Upsert(d models.Device) error
	TouchLastSeen(deviceID string, tsMs int64) error
}

// TagRepository is the contract for tag metadata lookup.
type TagRepository interface {
	Get(deviceID, tagID string) (models.Tag, error)
	ListForDevice(deviceID string) ([]models.Tag, error)
	Upsert(t models.Tag) error
}

// MemDeviceRepository is an in-memory DeviceRepository, mirroring the
// teacher's Registry device map.
type MemDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]models.Device
}

// NewMemDeviceRepository creates an empty device repository.
func NewMemDeviceRepository() *MemDeviceRepository {
	return &MemDeviceRepository{devices: make(map[string]models.Device)}
}

func (r *MemDeviceRepository) Get(deviceID string) (models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return models.Device{}, apperr.NotFound("DEVICE_NOT_FOUND", "device "+deviceID+" is not registered")
	}
	return d, nil
}

func (r *MemDeviceRepository) ListEnabled() ([]models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *MemDeviceRepository) Upsert(d models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.DeviceID] = d
	return nil
}

func (r *MemDeviceRepository) TouchLastSeen(deviceID string, tsMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return apperr.NotFound("DEVICE_NOT_FOUND", "device "+deviceID+" is not registered")
	}
	d.LastSeenMs = tsMs
	r.devices[deviceID] = d
	return nil
}

// MemTagRepository is an in-memory TagRepository.
type MemTagRepository struct {
	mu   sync.RWMutex
	tags map[string]map[string]models.Tag // deviceID -> tagID -> Tag
}

// NewMemTagRepository creates an empty tag repository.
func NewMemTagRepository() *MemTagRepository {
	return &MemTagRepository{tags: make(map[string]map[string]models.Tag)}
}

func (r *MemTagRepository) Get(deviceID, tagID string) (models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tags[deviceID][tagID]
	if !ok {
		return models.Tag{}, apperr.NotFound("TAG_NOT_FOUND", "tag "+tagID+" not found on device "+deviceID)
	}
	return t, nil
}

func (r *MemTagRepository) ListForDevice(deviceID string) ([]models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Tag, 0, len(r.tags[deviceID]))
	for _, t := range r.tags[deviceID] {
		out = append(out, t)
	}
	return out, nil
}

func (r *MemTagRepository) Upsert(t models.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tags[t.DeviceID] == nil {
		r.tags[t.DeviceID] = make(map[string]models.Tag)
	}
	r.tags[t.DeviceID][t.TagID] = t
	return nil
}

// StatusMonitor derives online/offline device status from
// LastSeenMs against an offline threshold, following the teacher's
// heartbeat monitorLoop.
type StatusMonitor struct {
	repo              DeviceRepository
	offlineThreshold  time.Duration
	mu                sync.Mutex
	stopCh            chan struct{}
	running           bool
	onStatusChange    func(deviceID string, online bool)
}

// NewStatusMonitor creates a monitor against repo.
func NewStatusMonitor(repo DeviceRepository, offlineThreshold time.Duration) *StatusMonitor {
	return &StatusMonitor{repo: repo, offlineThreshold: offlineThreshold, stopCh: make(chan struct{})}
}

// OnStatusChange registers a callback invoked on every status check
// with each enabled device's current online/offline state.
func (m *StatusMonitor) OnStatusChange(cb func(deviceID string, online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatusChange = cb
}

// Start begins periodic status checks until Stop is called.
func (m *StatusMonitor) Start(checkEvery time.Duration, nowMs func() int64) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	ticker := time.NewTicker(checkEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				m.check(nowMs())
			}
		}
	}()
}

// Stop halts the monitor loop.
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		close(m.stopCh)
		m.running = false
	}
}

func (m *StatusMonitor) check(nowMs int64) {
	devs, err := m.repo.ListEnabled()
	if err != nil {
		return
	}
	for _, d := range devs {
		online := nowMs-d.LastSeenMs <= m.offlineThreshold.Milliseconds()
		m.mu.Lock()
		cb := m.onStatusChange
		m.mu.Unlock()
		if cb != nil {
			cb(d.DeviceID, online)
		}
	}
}
