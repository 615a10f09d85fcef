package dispatch

import (
	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/schema"
)

const (
	opUpdateCell           = "dispatch.update_cell"
	opUpdateDateCell       = "dispatch.update_date_cell"
	opUpdateSelectCell     = "dispatch.update_select_cell"
	opToggleCheckbox       = "dispatch.toggle_checkbox"
	opAddChecklistTask     = "dispatch.add_checklist_task"
	opToggleChecklistTask  = "dispatch.toggle_checklist_task"
	opUpdateChecklistTask  = "dispatch.update_checklist_task"
	opRemoveChecklistTask  = "dispatch.remove_checklist_task"
	opReorderChecklistTask = "dispatch.reorder_checklist_tasks"
	opAddFileMedia         = "dispatch.add_file_media"
	opRemoveFileMedia      = "dispatch.remove_file_media"
	opAddRelation          = "dispatch.add_relation"
	opRemoveRelation       = "dispatch.remove_relation"
)

// UpdateTextCell writes a plain text payload into a cell; used for text,
// URL, number-as-string and AI output fields.
func (dispatcher *Dispatcher) UpdateTextCell(rowID string, field schema.Field, text string) {
	row, ok := dispatcher.resolveRow(opUpdateCell, rowID)
	if !ok {
		return
	}
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	cell.Set(schema.KeyCellData, text)
	row.Touch(now)
	dispatcher.logger.Debug("cell updated",
		zap.String("operation", opUpdateCell),
		zap.String("row_id", rowID),
		zap.String("field_id", field.ID))
}

// UpdateDateCell writes a date payload in its stored JSON form.
func (dispatcher *Dispatcher) UpdateDateCell(rowID string, field schema.Field, value cells.DateValue) {
	row, ok := dispatcher.resolveRow(opUpdateDateCell, rowID)
	if !ok {
		return
	}
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	cell.Set(schema.KeyCellData, cells.EncodeDate(value))
	row.Touch(now)
}

// UpdateSelectCell replaces the selected option ids of a select cell.
func (dispatcher *Dispatcher) UpdateSelectCell(rowID string, field schema.Field, optionIDs []string) {
	row, ok := dispatcher.resolveRow(opUpdateSelectCell, rowID)
	if !ok {
		return
	}
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	cell.Set(schema.KeyCellData, cells.JoinOptionIDs(optionIDs))
	row.Touch(now)
}

// ToggleCheckbox flips a checkbox cell; a missing cell toggles to checked.
func (dispatcher *Dispatcher) ToggleCheckbox(rowID string, field schema.Field) {
	row, ok := dispatcher.resolveRow(opToggleCheckbox, rowID)
	if !ok {
		return
	}
	current := schema.AsBool(schema.CellData(row.Cell(field.ID)))
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	cell.Set(schema.KeyCellData, !current)
	row.Touch(now)
}

func (dispatcher *Dispatcher) transformChecklist(operation, rowID string, field schema.Field, transform func(raw string) string) {
	row, ok := dispatcher.resolveRow(operation, rowID)
	if !ok {
		return
	}
	raw := schema.AsString(schema.CellData(row.Cell(field.ID)))
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	cell.Set(schema.KeyCellData, transform(raw))
	row.Touch(now)
}

// AddChecklistTask appends a task with a generated id.
func (dispatcher *Dispatcher) AddChecklistTask(rowID string, field schema.Field, taskName string) error {
	taskID, err := dispatcher.idProvider.NewID()
	if err != nil {
		return newDispatchError(opAddChecklistTask, "id_generation_failed", err)
	}
	dispatcher.transformChecklist(opAddChecklistTask, rowID, field, func(raw string) string {
		return cells.AddTask(raw, taskID, taskName)
	})
	return nil
}

// ToggleChecklistTask flips one task's completion state.
func (dispatcher *Dispatcher) ToggleChecklistTask(rowID string, field schema.Field, taskID string) {
	dispatcher.transformChecklist(opToggleChecklistTask, rowID, field, func(raw string) string {
		return cells.ToggleSelectedTask(raw, taskID)
	})
}

// UpdateChecklistTask renames one task.
func (dispatcher *Dispatcher) UpdateChecklistTask(rowID string, field schema.Field, taskID, taskName string) {
	dispatcher.transformChecklist(opUpdateChecklistTask, rowID, field, func(raw string) string {
		return cells.UpdateTask(raw, taskID, taskName)
	})
}

// RemoveChecklistTask deletes one task.
func (dispatcher *Dispatcher) RemoveChecklistTask(rowID string, field schema.Field, taskID string) {
	dispatcher.transformChecklist(opRemoveChecklistTask, rowID, field, func(raw string) string {
		return cells.RemoveTask(raw, taskID)
	})
}

// ReorderChecklistTasks moves a task between positions.
func (dispatcher *Dispatcher) ReorderChecklistTasks(rowID string, field schema.Field, fromIndex, toIndex int) {
	dispatcher.transformChecklist(opReorderChecklistTask, rowID, field, func(raw string) string {
		return cells.ReorderTasks(raw, fromIndex, toIndex)
	})
}

// AddFileMedia appends an attachment to a file/media cell's ordered item
// sequence.
func (dispatcher *Dispatcher) AddFileMedia(rowID string, field schema.Field, item cells.FileMediaItem) {
	if item.URL == "" {
		return
	}
	row, ok := dispatcher.resolveRow(opAddFileMedia, rowID)
	if !ok {
		return
	}
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	list := cell.EnsureList(schema.KeyCellData)
	encoded, encodeOK := cells.EncodeFileMediaItem(item)
	if !encodeOK {
		return
	}
	list.Push(encoded)
	row.Touch(now)
}

// RemoveFileMedia removes the attachment with the given url.
func (dispatcher *Dispatcher) RemoveFileMedia(rowID string, field schema.Field, url string) {
	row, ok := dispatcher.resolveRow(opRemoveFileMedia, rowID)
	if !ok {
		return
	}
	cell := row.Cell(field.ID)
	if cell == nil {
		return
	}
	list := cell.GetList(schema.KeyCellData)
	if list == nil {
		return
	}
	for index, raw := range list.Values() {
		item, decodeOK := cells.DecodeFileMediaItem(schema.AsString(raw))
		if decodeOK && item.URL == url {
			list.RemoveAt(index)
			row.Touch(dispatcher.clock())
			return
		}
	}
}

// AddRelation links another row into a relation cell, ignoring duplicates.
func (dispatcher *Dispatcher) AddRelation(rowID string, field schema.Field, linkedRowID string) {
	if linkedRowID == "" {
		return
	}
	row, ok := dispatcher.resolveRow(opAddRelation, rowID)
	if !ok {
		return
	}
	now := dispatcher.clock()
	cell := row.EnsureCell(field.ID, field.Type, now)
	list := cell.EnsureList(schema.KeyCellData)
	if list.IndexOf(linkedRowID) >= 0 {
		return
	}
	list.Push(linkedRowID)
	row.Touch(now)
}

// RemoveRelation unlinks a row from a relation cell.
func (dispatcher *Dispatcher) RemoveRelation(rowID string, field schema.Field, linkedRowID string) {
	row, ok := dispatcher.resolveRow(opRemoveRelation, rowID)
	if !ok {
		return
	}
	cell := row.Cell(field.ID)
	if cell == nil {
		return
	}
	list := cell.GetList(schema.KeyCellData)
	if list == nil {
		return
	}
	if index := list.IndexOf(linkedRowID); index >= 0 {
		list.RemoveAt(index)
		row.Touch(dispatcher.clock())
	}
}
