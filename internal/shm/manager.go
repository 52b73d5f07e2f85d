package shm

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarksys/shmd/internal/infrastructure/logging"
	"github.com/quarksys/shmd/internal/infrastructure/monitoring"
)

// Config holds the fixed bounds of the subsystem.
type Config struct {
	ArenaCapacity int
	MaxRegions    int
	MaxNameLen    int
	MaxACLEntries int
}

// DefaultConfig returns the stock bounds: a 64KiB arena, 16 region slots,
// 32-byte names and 8 ACL entries per region.
func DefaultConfig() Config {
	return Config{
		ArenaCapacity: 64 * 1024,
		MaxRegions:    16,
		MaxNameLen:    32,
		MaxACLEntries: 8,
	}
}

// Publisher receives region lifecycle events. Implemented by events.Bus;
// declared here so the manager stays decoupled from the bus wiring.
type Publisher interface {
	Publish(topic string, sender uint32, payload map[string]interface{})
}

// Lifecycle event topics.
const (
	TopicRegionCreated   = "shm.region.created"
	TopicRegionOpened    = "shm.region.opened"
	TopicRegionClosed    = "shm.region.closed"
	TopicRegionDestroyed = "shm.region.destroyed"
)

// Manager owns the arena and the region table. One table-wide lock
// serializes structural operations; payload copies run under the read
// side so reads and writes on any regions proceed concurrently while
// teardown cannot race a copy.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	arena   *Arena
	regions []region

	created   uint64
	destroyed uint64

	log     *logging.Logger
	metrics *monitoring.Metrics
	events  Publisher
}

// NewManager creates a region manager with the given bounds.
func NewManager(cfg Config, logger *logging.Logger) *Manager {
	if cfg.MaxRegions <= 0 || cfg.MaxRegions >= 1<<handleSlotBits {
		cfg.MaxRegions = DefaultConfig().MaxRegions
	}
	if cfg.MaxNameLen <= 0 {
		cfg.MaxNameLen = DefaultConfig().MaxNameLen
	}
	if cfg.MaxACLEntries <= 0 {
		cfg.MaxACLEntries = DefaultConfig().MaxACLEntries
	}
	if cfg.ArenaCapacity <= 0 {
		cfg.ArenaCapacity = DefaultConfig().ArenaCapacity
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:     cfg,
		arena:   NewArena(cfg.ArenaCapacity),
		regions: make([]region, cfg.MaxRegions),
		log:     logger,
	}
	logger.Info("shared memory initialized",
		zap.Int("arena_capacity", cfg.ArenaCapacity),
		zap.Int("max_regions", cfg.MaxRegions),
	)
	return m
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(mt *monitoring.Metrics) *Manager {
	m.metrics = mt
	return m
}

// WithEvents attaches a lifecycle event publisher.
func (m *Manager) WithEvents(pub Publisher) *Manager {
	m.events = pub
	return m
}

// Create reserves size bytes, zero-fills them and registers a region
// owned by caller with one reference.
func (m *Manager) Create(caller uint32, name string, size int, defaultPerm Perm) (Handle, error) {
	if name == "" || size <= 0 {
		return 0, ErrInvalidArgument
	}
	if len(name) > m.cfg.MaxNameLen {
		return 0, fmt.Errorf("%w: name longer than %d bytes", ErrInvalidArgument, m.cfg.MaxNameLen)
	}

	m.mu.Lock()
	if m.findByName(name) != nil {
		m.mu.Unlock()
		return 0, ErrAlreadyExists
	}

	slot := -1
	for i := range m.regions {
		if !m.regions[i].inUse {
			slot = i
			break
		}
	}
	if slot < 0 {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: no free region slots", ErrResourceExhausted)
	}

	off, data, err := m.arena.Reserve(size)
	if err != nil {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: arena cannot satisfy %d bytes", ErrResourceExhausted, size)
	}
	clear(data)

	r := &m.regions[slot]
	r.inUse = true
	r.gen++
	r.name = name
	r.off = off
	r.data = data
	r.owner = caller
	r.refCount = 1
	r.defaultPerm = defaultPerm
	r.acl = r.acl[:0]
	r.sem = make(chan struct{}, 1)
	r.locked = false
	r.lockOwner = 0

	h := makeHandle(slot, r.gen)
	m.created++
	if m.metrics != nil {
		m.metrics.RegionsCreated.Inc()
	}
	m.observe()
	m.mu.Unlock()

	m.log.Info("created region",
		zap.String("name", name),
		zap.Int("size", size),
		zap.Uint32("owner", caller),
		zap.Uint64("handle", uint64(h)),
	)
	m.publish(TopicRegionCreated, caller, name, h, size)
	return h, nil
}

// Open resolves a region by name, checks the caller may exercise the
// requested permission and takes a reference.
func (m *Manager) Open(caller uint32, name string, requested Perm) (Handle, error) {
	if name == "" {
		return 0, ErrInvalidArgument
	}

	m.mu.Lock()
	r := m.findByName(name)
	if r == nil {
		m.mu.Unlock()
		return 0, ErrNotFound
	}
	if !r.allows(caller, requested) {
		m.mu.Unlock()
		m.log.Warn("open denied",
			zap.String("name", name),
			zap.Uint32("caller", caller),
			zap.String("requested", requested.String()),
		)
		return 0, ErrPermissionDenied
	}
	r.refCount++
	h := makeHandle(m.slotOf(r), r.gen)
	size := len(r.data)
	m.mu.Unlock()

	m.publish(TopicRegionOpened, caller, name, h, size)
	return h, nil
}

// Close drops a reference. The last close tears the region down and
// returns its bytes to the arena.
func (m *Manager) Close(caller uint32, h Handle) error {
	m.mu.Lock()
	r, err := m.resolve(h)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if r.refCount == 0 {
		// A live region always holds at least one reference.
		m.mu.Unlock()
		m.log.DPanic("ref_count underflow", zap.String("name", r.name))
		return ErrInvalidHandle
	}
	r.refCount--
	if r.refCount > 0 {
		name, size := r.name, len(r.data)
		m.mu.Unlock()
		m.publish(TopicRegionClosed, caller, name, h, size)
		return nil
	}
	name, size := r.name, len(r.data)
	m.teardown(r)
	m.observe()
	m.mu.Unlock()

	m.log.Info("destroyed region", zap.String("name", name))
	m.publish(TopicRegionDestroyed, caller, name, h, size)
	return nil
}

// Destroy tears a region down regardless of outstanding references.
// Owner only; other holders see ErrInvalidHandle on next use.
func (m *Manager) Destroy(caller uint32, h Handle) error {
	m.mu.Lock()
	r, err := m.resolve(h)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if r.owner != caller {
		m.mu.Unlock()
		return ErrPermissionDenied
	}
	name, size := r.name, len(r.data)
	m.teardown(r)
	m.observe()
	m.mu.Unlock()

	m.log.Info("force destroyed region", zap.String("name", name), zap.Uint32("caller", caller))
	m.publish(TopicRegionDestroyed, caller, name, h, size)
	return nil
}

// GetInfo returns a metadata snapshot. No permission check: metadata is
// not payload.
func (m *Manager) GetInfo(h Handle) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.resolve(h)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:        r.name,
		Size:        len(r.data),
		Owner:       r.owner,
		RefCount:    r.refCount,
		DefaultPerm: r.defaultPerm,
	}, nil
}

// SetPermission grants perm to target. Owner only.
func (m *Manager) SetPermission(caller uint32, h Handle, target uint32, perm Perm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.resolve(h)
	if err != nil {
		return err
	}
	if r.owner != caller {
		return ErrPermissionDenied
	}
	return r.setPerm(target, perm, m.cfg.MaxACLEntries)
}

// Lock acquires the region's advisory exclusive lock, blocking up to
// timeout. A zero or negative timeout makes the attempt non-blocking.
// The lock is cooperative: Read and Write never take it.
func (m *Manager) Lock(caller uint32, h Handle, timeout time.Duration) error {
	m.mu.RLock()
	r, err := m.resolve(h)
	if err != nil {
		m.mu.RUnlock()
		return err
	}
	sem := r.sem
	m.mu.RUnlock()

	start := time.Now()
	if timeout <= 0 {
		select {
		case sem <- struct{}{}:
		default:
			return ErrTimeout
		}
	} else {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case sem <- struct{}{}:
		case <-t.C:
			return ErrTimeout
		}
	}

	// The region may have been torn down while we waited.
	m.mu.Lock()
	r, err = m.resolve(h)
	if err != nil {
		m.mu.Unlock()
		<-sem
		return ErrInvalidHandle
	}
	r.locked = true
	r.lockOwner = caller
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Unlock releases the advisory lock. Only the lock holder may release it.
func (m *Manager) Unlock(caller uint32, h Handle) error {
	m.mu.Lock()
	r, err := m.resolve(h)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if !r.locked || r.lockOwner != caller {
		m.mu.Unlock()
		return ErrPermissionDenied
	}
	r.locked = false
	r.lockOwner = 0
	sem := r.sem
	m.mu.Unlock()

	<-sem
	return nil
}

// Read copies region bytes starting at offset into buf, clamped at the
// region size. An offset at or past the end reads zero bytes; end of
// region is not exceptional.
func (m *Manager) Read(caller uint32, h Handle, offset int, buf []byte) (int, error) {
	if buf == nil || offset < 0 {
		return 0, ErrInvalidArgument
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	if !r.allows(caller, PermRead) {
		return 0, ErrPermissionDenied
	}
	if offset >= len(r.data) {
		return 0, nil
	}
	n := copy(buf, r.data[offset:])
	if m.metrics != nil {
		m.metrics.BytesRead.Add(float64(n))
	}
	return n, nil
}

// Write copies data into the region starting at offset, clamped at the
// region size. Writes never grow a region.
func (m *Manager) Write(caller uint32, h Handle, offset int, data []byte) (int, error) {
	if data == nil || offset < 0 {
		return 0, ErrInvalidArgument
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	if !r.allows(caller, PermWrite) {
		return 0, ErrPermissionDenied
	}
	if offset >= len(r.data) {
		return 0, nil
	}
	n := copy(r.data[offset:], data)
	if m.metrics != nil {
		m.metrics.BytesWritten.Add(float64(n))
	}
	return n, nil
}

// Snapshot returns a copy of the region payload. Requires read
// permission. The copy is detached: it never aliases arena memory, so a
// torn-down region cannot leak through it.
func (m *Manager) Snapshot(caller uint32, h Handle) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.resolve(h)
	if err != nil {
		return nil, err
	}
	if !r.allows(caller, PermRead) {
		return nil, ErrPermissionDenied
	}
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out, nil
}

// Stats is a point-in-time view of subsystem usage.
type Stats struct {
	RegionsInUse     int    `json:"regions_in_use"`
	MaxRegions       int    `json:"max_regions"`
	ArenaUsed        int    `json:"arena_used"`
	ArenaCapacity    int    `json:"arena_capacity"`
	RegionsCreated   uint64 `json:"regions_created"`
	RegionsDestroyed uint64 `json:"regions_destroyed"`
}

// Stats returns subsystem usage counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inUse := 0
	for i := range m.regions {
		if m.regions[i].inUse {
			inUse++
		}
	}
	return Stats{
		RegionsInUse:     inUse,
		MaxRegions:       m.cfg.MaxRegions,
		ArenaUsed:        m.arena.Used(),
		ArenaCapacity:    m.arena.Capacity(),
		RegionsCreated:   m.created,
		RegionsDestroyed: m.destroyed,
	}
}

// findByName returns the in-use region with the given name, or nil.
// Caller holds the table lock.
func (m *Manager) findByName(name string) *region {
	for i := range m.regions {
		if m.regions[i].inUse && m.regions[i].name == name {
			return &m.regions[i]
		}
	}
	return nil
}

// resolve maps a handle to its region, rejecting stale generations.
// Caller holds the table lock.
func (m *Manager) resolve(h Handle) (*region, error) {
	slot := h.slot()
	if slot >= len(m.regions) {
		return nil, ErrInvalidHandle
	}
	r := &m.regions[slot]
	if !r.inUse || r.gen != h.generation() {
		return nil, ErrInvalidHandle
	}
	return r, nil
}

func (m *Manager) slotOf(r *region) int {
	for i := range m.regions {
		if &m.regions[i] == r {
			return i
		}
	}
	return -1
}

// teardown releases the region's bytes and frees the slot. Caller holds
// the table write lock.
func (m *Manager) teardown(r *region) {
	m.arena.Release(r.off, len(r.data))
	r.inUse = false
	r.name = ""
	r.data = nil
	r.refCount = 0
	r.acl = r.acl[:0]
	m.destroyed++
	if m.metrics != nil {
		m.metrics.RegionsDestroyed.Inc()
	}
}

func (m *Manager) observe() {
	if m.metrics == nil {
		return
	}
	inUse := 0
	for i := range m.regions {
		if m.regions[i].inUse {
			inUse++
		}
	}
	m.metrics.RegionsActive.Set(float64(inUse))
	m.metrics.ArenaUsedBytes.Set(float64(m.arena.Used()))
}

func (m *Manager) publish(topic string, caller uint32, name string, h Handle, size int) {
	if m.events == nil {
		return
	}
	m.events.Publish(topic, caller, map[string]interface{}{
		"name":   name,
		"handle": uint64(h),
		"size":   size,
	})
}
