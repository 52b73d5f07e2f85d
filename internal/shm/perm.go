package shm

import "fmt"

// Perm is a region permission bitmask.
type Perm uint8

const (
	PermNone  Perm = 0x00
	PermRead  Perm = 0x01
	PermWrite Perm = 0x02
	PermRW    Perm = PermRead | PermWrite
)

// Has reports whether p grants every bit in required.
func (p Perm) Has(required Perm) bool {
	return p&required == required
}

func (p Perm) String() string {
	switch p {
	case PermNone:
		return "none"
	case PermRead:
		return "read"
	case PermWrite:
		return "write"
	case PermRW:
		return "rw"
	default:
		return fmt.Sprintf("perm(%#x)", uint8(p))
	}
}

// ParsePerm converts a wire-level permission name to a Perm.
func ParsePerm(s string) (Perm, error) {
	switch s {
	case "none", "":
		return PermNone, nil
	case "read", "r":
		return PermRead, nil
	case "write", "w":
		return PermWrite, nil
	case "rw", "read_write", "readwrite":
		return PermRW, nil
	default:
		return PermNone, fmt.Errorf("%w: unknown permission %q", ErrInvalidArgument, s)
	}
}

// aclEntry grants perm to a single app. A present entry is authoritative:
// it is never widened by the region's default permission.
type aclEntry struct {
	appID uint32
	perm  Perm
}
