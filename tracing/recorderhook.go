package tracing

import (
	"github.com/sarchlab/hwconform/datarecording"
	"github.com/sarchlab/hwconform/sim/hooking"
)

// Recordable is an item that can be stored as a row of a table.
type Recordable interface {
	// TableName returns the table the row goes to.
	TableName() string

	// Record returns a flat struct whose fields become the columns.
	Record() any
}

// RecorderHook writes every Recordable hook item into a DataRecorder. Tables
// are created the first time an item of that table is seen.
type RecorderHook struct {
	recorder datarecording.DataRecorder
}

// NewRecorderHook creates a RecorderHook.
func NewRecorderHook(recorder datarecording.DataRecorder) *RecorderHook {
	return &RecorderHook{recorder: recorder}
}

// Func records the item of ctx if it is Recordable.
func (h *RecorderHook) Func(ctx hooking.HookCtx) {
	item, ok := ctx.Item.(Recordable)
	if !ok {
		return
	}

	table := item.TableName()
	entry := item.Record()

	if !h.recorder.HasTable(table) {
		h.recorder.CreateTable(table, entry)
	}

	h.recorder.InsertData(table, entry)
}
