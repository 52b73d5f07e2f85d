package shm

// Handle identifies an in-use region. The low bits hold the table slot
// and the high bits a per-slot generation counter, so a handle retained
// after its region is destroyed fails validation instead of silently
// addressing whatever region reused the slot.
type Handle uint64

const handleSlotBits = 16

func makeHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<handleSlotBits | uint64(slot))
}

func (h Handle) slot() int {
	return int(h & (1<<handleSlotBits - 1))
}

func (h Handle) generation() uint32 {
	return uint32(h >> handleSlotBits)
}
