package cells

import (
	"encoding/json"

	"github.com/loomhq/loom/engine/internal/schema"
)

// ChecklistData is the wire shape of a checklist cell, stored as a JSON
// string inside a single cell value.
type ChecklistData struct {
	Options           []schema.SelectOption `json:"options"`
	SelectedOptionIDs []string              `json:"selected_option_ids"`
}

// Percentage returns the completed fraction. An empty checklist is 0, never
// NaN.
func (data ChecklistData) Percentage() float64 {
	if len(data.Options) == 0 {
		return 0
	}
	return float64(len(data.SelectedOptionIDs)) / float64(len(data.Options))
}

// ParseChecklistData decodes a checklist payload, dropping malformed options
// and selections that point at no option. Malformed JSON decodes to an empty
// checklist.
func ParseChecklistData(raw string) ChecklistData {
	var data ChecklistData
	if raw == "" {
		return ChecklistData{SelectedOptionIDs: []string{}}
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return ChecklistData{SelectedOptionIDs: []string{}}
	}
	return sanitizeChecklist(data)
}

func sanitizeChecklist(data ChecklistData) ChecklistData {
	options := make([]schema.SelectOption, 0, len(data.Options))
	known := make(map[string]bool, len(data.Options))
	for _, option := range data.Options {
		if option.ID == "" || known[option.ID] {
			continue
		}
		options = append(options, option)
		known[option.ID] = true
	}
	selected := make([]string, 0, len(data.SelectedOptionIDs))
	picked := make(map[string]bool, len(data.SelectedOptionIDs))
	for _, id := range data.SelectedOptionIDs {
		if !known[id] || picked[id] {
			continue
		}
		selected = append(selected, id)
		picked[id] = true
	}
	return ChecklistData{Options: options, SelectedOptionIDs: selected}
}

func encodeChecklist(data ChecklistData) string {
	encoded, err := json.Marshal(sanitizeChecklist(data))
	if err != nil {
		return ""
	}
	return string(encoded)
}

// AddTask appends a task with the supplied id and name and returns the
// re-serialized payload. The caller owns id generation.
func AddTask(raw, taskID, taskName string) string {
	if taskID == "" {
		return encodeChecklist(ParseChecklistData(raw))
	}
	data := ParseChecklistData(raw)
	data.Options = append(data.Options, schema.SelectOption{ID: taskID, Name: taskName})
	return encodeChecklist(data)
}

// ToggleSelectedTask flips the completion state of one task. Toggling twice
// restores the original selection.
func ToggleSelectedTask(raw, taskID string) string {
	data := ParseChecklistData(raw)
	for index, id := range data.SelectedOptionIDs {
		if id == taskID {
			data.SelectedOptionIDs = append(data.SelectedOptionIDs[:index], data.SelectedOptionIDs[index+1:]...)
			return encodeChecklist(data)
		}
	}
	data.SelectedOptionIDs = append(data.SelectedOptionIDs, taskID)
	return encodeChecklist(data)
}

// UpdateTask renames a task in place.
func UpdateTask(raw, taskID, taskName string) string {
	data := ParseChecklistData(raw)
	for index := range data.Options {
		if data.Options[index].ID == taskID {
			data.Options[index].Name = taskName
			break
		}
	}
	return encodeChecklist(data)
}

// RemoveTask deletes a task and any selection pointing at it.
func RemoveTask(raw, taskID string) string {
	data := ParseChecklistData(raw)
	options := make([]schema.SelectOption, 0, len(data.Options))
	for _, option := range data.Options {
		if option.ID == taskID {
			continue
		}
		options = append(options, option)
	}
	data.Options = options
	return encodeChecklist(data)
}

// ReorderTasks moves the task at fromIndex to toIndex; out-of-range indexes
// leave the payload untouched.
func ReorderTasks(raw string, fromIndex, toIndex int) string {
	data := ParseChecklistData(raw)
	if fromIndex < 0 || fromIndex >= len(data.Options) || toIndex < 0 || toIndex >= len(data.Options) {
		return encodeChecklist(data)
	}
	option := data.Options[fromIndex]
	data.Options = append(data.Options[:fromIndex], data.Options[fromIndex+1:]...)
	data.Options = append(data.Options, schema.SelectOption{})
	copy(data.Options[toIndex+1:], data.Options[toIndex:])
	data.Options[toIndex] = option
	return encodeChecklist(data)
}
