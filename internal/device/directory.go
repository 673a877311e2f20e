package device

import (
	"context"
	"sync"
)

// Directory resolves (room, type) pairs to devices with an in-memory cache.
//
// The rule engine resolves the target device on every action execution;
// hitting SQLite each time would be wasteful, so resolutions are cached
// under a room|type key. Mutations through the Directory invalidate the
// affected entries. Resolutions return copies so callers cannot mutate
// the cache.
type Directory struct {
	repo Repository

	mu    sync.RWMutex
	cache map[string]Device
}

// NewDirectory creates a Directory backed by the given repository.
func NewDirectory(repo Repository) *Directory {
	return &Directory{
		repo:  repo,
		cache: make(map[string]Device),
	}
}

func cacheKey(room string, deviceType Type) string {
	return NormaliseRoom(room) + "|" + string(deviceType)
}

// Resolve returns the enabled device of the given type in the given room.
// Returns ErrDeviceNotFound if no such device exists.
func (dir *Directory) Resolve(ctx context.Context, room string, deviceType Type) (*Device, error) {
	key := cacheKey(room, deviceType)

	dir.mu.RLock()
	cached, ok := dir.cache[key]
	dir.mu.RUnlock()
	if ok {
		d := cached
		return &d, nil
	}

	d, err := dir.repo.GetByRoomAndType(ctx, room, deviceType)
	if err != nil {
		return nil, err
	}

	dir.mu.Lock()
	dir.cache[key] = *d
	dir.mu.Unlock()

	result := *d
	return &result, nil
}

// Get retrieves a device by ID, bypassing the resolution cache.
func (dir *Directory) Get(ctx context.Context, id string) (*Device, error) {
	return dir.repo.GetByID(ctx, id)
}

// List retrieves all devices.
func (dir *Directory) List(ctx context.Context) ([]Device, error) {
	return dir.repo.List(ctx)
}

// Create inserts a new device and invalidates the affected cache entry.
func (dir *Directory) Create(ctx context.Context, d *Device) error {
	if err := dir.repo.Create(ctx, d); err != nil {
		return err
	}
	dir.invalidate(d.Room, d.Type)
	return nil
}

// Update modifies an existing device. The whole cache is invalidated
// because the device may have moved rooms or changed type.
func (dir *Directory) Update(ctx context.Context, d *Device) error {
	if err := dir.repo.Update(ctx, d); err != nil {
		return err
	}
	dir.invalidateAll()
	return nil
}

// Delete removes a device and invalidates the whole cache.
func (dir *Directory) Delete(ctx context.Context, id string) error {
	if err := dir.repo.Delete(ctx, id); err != nil {
		return err
	}
	dir.invalidateAll()
	return nil
}

func (dir *Directory) invalidate(room string, deviceType Type) {
	dir.mu.Lock()
	delete(dir.cache, cacheKey(room, deviceType))
	dir.mu.Unlock()
}

func (dir *Directory) invalidateAll() {
	dir.mu.Lock()
	dir.cache = make(map[string]Device)
	dir.mu.Unlock()
}
