package gridentry

// TypeTag identifies how a value's off-heap bytes were produced, so they
// can be recovered without rehydrating onto the heap.
type TypeTag uint8

const (
	// TypeBytes marks a value that is already a raw byte slice.
	TypeBytes TypeTag = iota
	// TypeMarshaled marks a value that was serialized by the cache's
	// marshaller and needs unmarshalling to become a usable Go value.
	TypeMarshaled
)

// Value is the polymorphic cache object: either a raw byte payload or an
// arbitrary marshaled Go value plus the bytes it was serialized to. It is
// normalized into this shape once, at the value-store boundary.
type Value struct {
	Tag   TypeTag
	Bytes []byte
	// Obj holds the live, already-deserialized form when known (e.g. the
	// value was just computed in-process and never needed marshalling).
	// It may be nil even when Tag == TypeMarshaled, if only the off-heap
	// bytes survive (see offheapHandle).
	Obj any
}

// Marshaller turns a user value into bytes for off-heap storage and back.
// A cache that never uses off-heap values-only mode may pass a nil
// Marshaller; set_value then never needs it.
type Marshaller interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(tag TypeTag, data []byte) (any, error)
}

// offheapHandle is a move-only handle over a pointer owned by the off-heap
// allocator. It releases the backing memory via its allocator on release
// unless adopt was called to hand ownership to a successor value or to
// swap.
type offheapHandle struct {
	ptr      uint64
	tag      TypeTag
	arena    OffheapAllocator
	released bool
}

func (h *offheapHandle) release() {
	if h == nil || h.released || h.arena == nil {
		return
	}
	h.arena.RemoveOffHeap(h.ptr)
	h.released = true
}

// adopt transfers ownership of the handle to a caller (e.g. the swap tier)
// without releasing the backing memory; subsequent release on this cell's
// copy becomes a no-op.
func (h *offheapHandle) adopt() {
	if h == nil {
		return
	}
	h.released = true
}

// valueSlot is exactly one of {empty, heap, offheap} at rest. The one
// exception: empty+offheap means "the value lives off-heap only".
type valueSlot struct {
	heap    *Value
	offheap *offheapHandle
}

func (s *valueSlot) isEmpty() bool {
	return s.heap == nil && s.offheap == nil
}

func (s *valueSlot) clear() {
	if s.offheap != nil {
		s.offheap.release()
	}
	s.heap = nil
	s.offheap = nil
}

// setValue replaces the slot under the cell lock. off-heap-values-only
// configurations store the value's bytes via the allocator and clear the
// heap slot; ordinary configurations keep the heap slot and clear any
// off-heap pointer. Off-heap-tiered mode (promote in progress) may see
// both populated transiently, but any future call to setValue with a heap
// value always clears the pointer: a write wins over a stale promoted
// copy.
func (c *Cell) setValue(v *Value) error {
	old := c.value

	if c.offHeapValuesOnly {
		if c.allocator == nil {
			return errNoAllocator
		}
		bytes, tag, err := c.toOffheapBytes(v)
		if err != nil {
			// Serialization failed; the old value stays intact,
			// nothing has been released yet.
			return err
		}
		ptr := c.allocator.PutOffHeap(bytes, tag)
		c.value = valueSlot{offheap: &offheapHandle{ptr: ptr, tag: tag, arena: c.allocator}}
		c.accountIGFSDelta(old, nil)
		old.clear()
		return nil
	}

	c.value = valueSlot{heap: v}
	c.accountIGFSDelta(old, v)
	old.clear()
	return nil
}

func (c *Cell) toOffheapBytes(v *Value) ([]byte, TypeTag, error) {
	if v == nil {
		return nil, TypeBytes, nil
	}
	if v.Bytes != nil {
		return v.Bytes, v.Tag, nil
	}
	if v.Obj != nil && c.marshaller != nil {
		b, err := c.marshaller.Marshal(v.Obj)
		if err != nil {
			return nil, TypeMarshaled, err
		}
		return b, TypeMarshaled, nil
	}
	return v.Bytes, v.Tag, nil
}

// valueBytesUnlocked returns bytes and the type tag from whichever
// representation is present. Calling it with neither is an error.
func (c *Cell) valueBytesUnlocked() ([]byte, TypeTag, error) {
	if c.value.heap != nil {
		if c.value.heap.Bytes != nil {
			return c.value.heap.Bytes, c.value.heap.Tag, nil
		}
		if c.marshaller != nil && c.value.heap.Obj != nil {
			b, err := c.marshaller.Marshal(c.value.heap.Obj)
			return b, TypeMarshaled, err
		}
	}
	if c.value.offheap != nil {
		b, _ := c.allocator.Get(c.value.offheap.ptr)
		return b, c.value.offheap.tag, nil
	}
	return nil, 0, ErrNoValue
}

// hasValueUnlocked reports whether the slot currently holds any
// representation of a value.
func (c *Cell) hasValueUnlocked() bool {
	return !c.value.isEmpty()
}

// materialize returns the live Go value, unmarshalling from off-heap bytes
// if that's the only representation present and unmarshal is requested.
func (c *Cell) materialize(unmarshal bool) (any, bool) {
	if c.value.heap != nil {
		if c.value.heap.Obj != nil {
			return c.value.heap.Obj, true
		}
		if !unmarshal || c.marshaller == nil {
			return c.value.heap, true
		}
		obj, err := c.marshaller.Unmarshal(c.value.heap.Tag, c.value.heap.Bytes)
		if err != nil {
			return c.value.heap, true
		}
		return obj, true
	}
	if c.value.offheap != nil && unmarshal {
		b, tag := c.allocator.Get(c.value.offheap.ptr)
		if c.marshaller == nil {
			return &Value{Tag: tag, Bytes: b}, true
		}
		obj, err := c.marshaller.Unmarshal(tag, b)
		if err != nil {
			return &Value{Tag: tag, Bytes: b}, true
		}
		return obj, true
	}
	return nil, false
}

// accountIGFSDelta reports the serialized-size delta to the data-size
// accountant when this cell belongs to the IGFS data cache and its key
// addresses an IGFS block. Outside that configuration it is a no-op.
func (c *Cell) accountIGFSDelta(old valueSlot, new *Value) {
	if !c.isIGFSDataCache || c.sizeAccountant == nil || !c.key.IsIGFSBlock {
		return
	}
	oldSize := 0
	if old.heap != nil {
		oldSize = len(old.heap.Bytes)
	}
	newSize := 0
	if new != nil {
		newSize = len(new.Bytes)
	}
	c.sizeAccountant.AdjustSize(newSize - oldSize)
}

// SizeAccountant tracks the IGFS data cache's accounted byte size.
type SizeAccountant interface {
	AdjustSize(delta int)
}
