package registry

import "sync"

// dualIndex holds two coupled lookup structures: an id→Instance map
// containing every registered instance (healthy or not), and a
// serviceType→{ids} map containing only ids of currently healthy
// instances of that type.
//
// Grounded on core/discovery.go's MockDiscovery: a sync.RWMutex guarding
// plain Go maps, snapshot copies handed to callers on read so no internal
// structure is ever shared past the lock. Unlike MockDiscovery, the
// service-type set is a map[string]struct{} (a true set) rather than a
// slice, so insert/remove are O(1) instead of O(n) linear scans — the
// health supervisor mutates this on every probe outcome, so the
// distinction matters at scale.
type dualIndex struct {
	mu sync.RWMutex

	instances map[string]*Instance          // id -> instance
	byType    map[string]map[string]struct{} // serviceType -> set of healthy ids
}

func newDualIndex() *dualIndex {
	return &dualIndex{
		instances: make(map[string]*Instance),
		byType:    make(map[string]map[string]struct{}),
	}
}

// insert adds rec to the index. Precondition: rec.ID must be absent;
// callers (the Registry Core) are responsible for generating unique ids
// before calling insert, so this never needs to report a conflict.
func (d *dualIndex) insert(rec *Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.instances[rec.ID] = rec
	if rec.Healthy {
		d.addToType(rec.ServiceType, rec.ID)
	}
}

// remove deletes id from both structures. Idempotent: removing an id
// that is absent is a no-op.
func (d *dualIndex) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.instances[id]
	if !ok {
		return
	}
	delete(d.instances, id)
	d.removeFromType(rec.ServiceType, id)
}

// markUnhealthy flips an instance to unhealthy and drops it from its
// service-type set. No-op if the id is absent or already unhealthy.
func (d *dualIndex) markUnhealthy(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.instances[id]
	if !ok || !rec.Healthy {
		return
	}
	rec.Healthy = false
	rec.LastUpdated = nowMillis()
	d.removeFromType(rec.ServiceType, id)
}

// markHealthy flips an instance to healthy and re-adds it to its
// service-type set. No-op if the id is absent or already healthy.
func (d *dualIndex) markHealthy(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.instances[id]
	if !ok || rec.Healthy {
		return
	}
	rec.Healthy = true
	rec.LastUpdated = nowMillis()
	d.addToType(rec.ServiceType, id)
}

// getByID returns a snapshot copy of the record, regardless of health, or
// false if absent — unhealthy records are returned too, not hidden.
func (d *dualIndex) getByID(id string) (Instance, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.instances[id]
	if !ok {
		return Instance{}, false
	}
	return rec.clone(), true
}

// validateToken reports whether id exists and its bound token equals
// presented, in constant time. Lives here (not credentials.go) because it
// needs the index's lock to read the record safely.
func (d *dualIndex) validateToken(id, presented string) bool {
	d.mu.RLock()
	rec, ok := d.instances[id]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	return constantTimeEqual(rec.token, presented)
}

// listByType returns a snapshot of every currently-healthy instance of
// the given service type. Empty (nil) if none.
func (d *dualIndex) listByType(serviceType string) []Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.byType[serviceType]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Instance, 0, len(ids))
	for id := range ids {
		if rec, ok := d.instances[id]; ok {
			out = append(out, rec.clone())
		}
	}
	return out
}

// listAll returns a snapshot of every registered instance, healthy or
// not. Used by the Health Supervisor to build its per-cycle worklist.
func (d *dualIndex) listAll() []Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Instance, 0, len(d.instances))
	for _, rec := range d.instances {
		out = append(out, rec.clone())
	}
	return out
}

// stats reports a point-in-time count summary (instanceCount, serviceCount).
func (d *dualIndex) stats() (instanceCount, serviceCount int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make(map[string]struct{})
	for _, rec := range d.instances {
		types[rec.ServiceType] = struct{}{}
	}
	return len(d.instances), len(types)
}

// addToType and removeFromType must be called with d.mu already held.

func (d *dualIndex) addToType(serviceType, id string) {
	set, ok := d.byType[serviceType]
	if !ok {
		set = make(map[string]struct{})
		d.byType[serviceType] = set
	}
	set[id] = struct{}{}
}

func (d *dualIndex) removeFromType(serviceType, id string) {
	set, ok := d.byType[serviceType]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(d.byType, serviceType)
	}
}
