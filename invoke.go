package gridentry

// UpdateOp is the kind of mutation innerUpdate/innerUpdateLocal perform.
type UpdateOp uint8

const (
	OpUpdate UpdateOp = iota
	OpDelete
	OpTransform
)

// EntryProcessor is the user-supplied closure TRANSFORM invokes against a
// MutableEntry view of the cell's current value.
type EntryProcessor interface {
	Process(e *MutableEntry) (result any, err error)
}

// EntryProcessorFunc adapts a function to EntryProcessor.
type EntryProcessorFunc func(e *MutableEntry) (any, error)

func (f EntryProcessorFunc) Process(e *MutableEntry) (any, error) { return f(e) }

// MutableEntry is the invoke-entry view an EntryProcessor mutates. Calling
// SetValue or Remove marks the entry Modified; calling neither leaves the
// underlying cell untouched.
type MutableEntry struct {
	Key      Key
	oldVal   any
	hasOld   bool
	newVal   any
	modified bool
	removed  bool
}

// Value returns the entry's current value before this invocation.
func (e *MutableEntry) Value() (any, bool) { return e.oldVal, e.hasOld }

// SetValue records a replacement value; degrades to delete if v is nil.
func (e *MutableEntry) SetValue(v any) {
	if v == nil {
		e.Remove()
		return
	}
	e.newVal = v
	e.modified = true
	e.removed = false
}

// Remove marks the entry for deletion.
func (e *MutableEntry) Remove() {
	e.modified = true
	e.removed = true
	e.newVal = nil
}

func (e *MutableEntry) Modified() bool { return e.modified }
func (e *MutableEntry) Removed() bool  { return e.removed }
func (e *MutableEntry) NewValue() any  { return e.newVal }

// InvokeResult captures what the entry processor produced, including a
// captured closure failure: it is never propagated, the
// operation proceeds as no-change.
type InvokeResult struct {
	Result any
	Err    error
}
