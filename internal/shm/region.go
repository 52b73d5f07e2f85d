package shm

// region is one slot in the region table. All fields are guarded by the
// Manager's table lock except the payload bytes behind data, which the
// subsystem never serializes (see Lock for cooperative exclusion), and
// sem, which is only ever swapped while the slot is free.
type region struct {
	inUse bool
	gen   uint32

	name        string
	off         int
	data        []byte
	owner       uint32
	refCount    uint32
	defaultPerm Perm
	acl         []aclEntry

	// Advisory exclusive lock: a one-slot semaphore so acquisition can
	// race against a timeout.
	sem       chan struct{}
	locked    bool
	lockOwner uint32
}

// allows implements the discretionary access check: owner bypass first,
// then an authoritative ACL entry, then the default permission.
func (r *region) allows(caller uint32, required Perm) bool {
	if caller == r.owner {
		return true
	}
	for _, e := range r.acl {
		if e.appID == caller {
			return e.perm.Has(required)
		}
	}
	return r.defaultPerm.Has(required)
}

// setPerm updates the entry for target or appends a new one, failing once
// the fixed ACL capacity is reached.
func (r *region) setPerm(target uint32, perm Perm, maxEntries int) error {
	for i := range r.acl {
		if r.acl[i].appID == target {
			r.acl[i].perm = perm
			return nil
		}
	}
	if len(r.acl) >= maxEntries {
		return ErrResourceExhausted
	}
	r.acl = append(r.acl, aclEntry{appID: target, perm: perm})
	return nil
}

// Info is a read-only snapshot of region metadata. Metadata is not
// payload, so no permission check gates it.
type Info struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	Owner       uint32 `json:"owner"`
	RefCount    uint32 `json:"ref_count"`
	DefaultPerm Perm   `json:"default_perm"`
}
