package cells

import (
	"encoding/json"
	"strings"

	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// Value is the closed union of typed cell values. Exactly one concrete type
// exists per field-type family; Decode never fails, it degrades malformed
// payloads to the family's empty value so the UI can always render.
type Value interface {
	FieldType() schema.FieldType
}

// TextValue backs RichText, URL, AISummaries, AITranslations and any unknown
// field type.
type TextValue struct {
	Type schema.FieldType
	Text string
}

// FieldType returns the concrete field type carried by the value.
func (value TextValue) FieldType() schema.FieldType { return value.Type }

// NumberValue keeps the stored number-as-string form; formatting is a UI
// concern.
type NumberValue struct {
	Raw string
}

func (value NumberValue) FieldType() schema.FieldType { return schema.FieldTypeNumber }

// Float parses the raw payload, 0 for malformed input.
func (value NumberValue) Float() float64 {
	return schema.AsFloat(value.Raw)
}

// CheckboxValue is a resolved boolean cell.
type CheckboxValue struct {
	Checked bool
}

func (value CheckboxValue) FieldType() schema.FieldType { return schema.FieldTypeCheckbox }

// DateValue is a decoded date/time cell.
type DateValue struct {
	Type         schema.FieldType `json:"-"`
	Timestamp    int64            `json:"timestamp"`
	EndTimestamp int64            `json:"end_timestamp,omitempty"`
	IncludeTime  bool             `json:"include_time,omitempty"`
	IsRange      bool             `json:"is_range,omitempty"`
	ReminderID   string           `json:"reminder_id,omitempty"`
}

func (value DateValue) FieldType() schema.FieldType {
	if value.Type == "" {
		return schema.FieldTypeDateTime
	}
	return value.Type
}

// SelectValue carries the selected option ids of a single- or multi-select
// cell. Resolution to display names happens against the field's option list.
type SelectValue struct {
	Type              schema.FieldType
	SelectedOptionIDs []string
}

func (value SelectValue) FieldType() schema.FieldType { return value.Type }

// ChecklistValue is a decoded checklist cell.
type ChecklistValue struct {
	Data ChecklistData
}

func (value ChecklistValue) FieldType() schema.FieldType { return schema.FieldTypeChecklist }

// RelationValue is an opaque ordered list of linked row ids; resolving them
// to rows belongs to the relation loader, not the codec.
type RelationValue struct {
	RowIDs []string
}

func (value RelationValue) FieldType() schema.FieldType { return schema.FieldTypeRelation }

// FileMediaItem is one stored file or media attachment.
type FileMediaItem struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	FileType string `json:"file_type"`
}

// FileMediaValue is a decoded file/media cell.
type FileMediaValue struct {
	Items []FileMediaItem
}

func (value FileMediaValue) FieldType() schema.FieldType { return schema.FieldTypeFileMedia }

// Decode converts a raw shared-document cell payload into a typed value.
// Malformed and missing payloads decode to the field type's empty value.
func Decode(fieldType schema.FieldType, raw any) Value {
	switch fieldType {
	case schema.FieldTypeNumber:
		return NumberValue{Raw: schema.AsString(raw)}
	case schema.FieldTypeCheckbox:
		return CheckboxValue{Checked: schema.AsBool(raw)}
	case schema.FieldTypeDateTime, schema.FieldTypeCreatedTime, schema.FieldTypeLastEditedTime:
		return decodeDate(fieldType, raw)
	case schema.FieldTypeSingleSelect, schema.FieldTypeMultiSelect:
		return SelectValue{Type: fieldType, SelectedOptionIDs: SplitOptionIDs(schema.AsString(raw))}
	case schema.FieldTypeChecklist:
		return ChecklistValue{Data: ParseChecklistData(schema.AsString(raw))}
	case schema.FieldTypeRelation:
		return RelationValue{RowIDs: decodeStringList(raw)}
	case schema.FieldTypeFileMedia:
		return decodeFileMedia(raw)
	default:
		return TextValue{Type: fieldType, Text: schema.AsString(raw)}
	}
}

// DecodeCell decodes the cell stored on row for field, substituting the empty
// value when the cell was never written.
func DecodeCell(row schema.Row, field schema.Field) Value {
	return Decode(field.Type, schema.CellData(row.Cell(field.ID)))
}

func decodeDate(fieldType schema.FieldType, raw any) DateValue {
	encoded := schema.AsString(raw)
	if encoded == "" {
		return DateValue{Type: fieldType}
	}
	if strings.HasPrefix(encoded, "{") {
		var value DateValue
		if err := json.Unmarshal([]byte(encoded), &value); err == nil {
			value.Type = fieldType
			return value
		}
	}
	return DateValue{Type: fieldType, Timestamp: schema.AsInt64(encoded)}
}

func decodeFileMedia(raw any) FileMediaValue {
	items := make([]FileMediaItem, 0)
	for _, encoded := range decodeStringList(raw) {
		var item FileMediaItem
		if err := json.Unmarshal([]byte(encoded), &item); err != nil {
			continue
		}
		if item.URL == "" {
			continue
		}
		items = append(items, item)
	}
	return FileMediaValue{Items: items}
}

func decodeStringList(raw any) []string {
	list, ok := raw.(*shareddoc.ListNode)
	if !ok || list == nil {
		return nil
	}
	values := list.Values()
	items := make([]string, 0, len(values))
	for _, value := range values {
		if item := schema.AsString(value); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// SplitOptionIDs parses the comma-joined option id form used by select cells.
func SplitOptionIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// JoinOptionIDs encodes selected option ids back into the stored form.
func JoinOptionIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// EncodeFileMediaItem serializes one attachment into its stored JSON form.
func EncodeFileMediaItem(item FileMediaItem) (string, bool) {
	encoded, err := json.Marshal(item)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}

// DecodeFileMediaItem parses one stored attachment payload.
func DecodeFileMediaItem(raw string) (FileMediaItem, bool) {
	var item FileMediaItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return FileMediaItem{}, false
	}
	if item.URL == "" {
		return FileMediaItem{}, false
	}
	return item, true
}

// EncodeDate serializes a date value into its stored JSON form.
func EncodeDate(value DateValue) string {
	value.Type = ""
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// DisplayText renders a decoded value as plain text for sorting, grouping and
// previews. Select ids without a matching configured option are dropped.
func DisplayText(value Value, field schema.Field) string {
	switch typed := value.(type) {
	case TextValue:
		return typed.Text
	case NumberValue:
		return typed.Raw
	case CheckboxValue:
		if typed.Checked {
			return "Yes"
		}
		return "No"
	case DateValue:
		dateFormat, timeFormat := ResolveFormats(DateFormat(field.DateFormat), TimeFormat(field.TimeFormat), UserDatePreference{})
		if field.IncludeTime {
			typed.IncludeTime = true
		}
		return FormatDate(typed, dateFormat, timeFormat)
	case SelectValue:
		names := make([]string, 0, len(typed.SelectedOptionIDs))
		for _, id := range typed.SelectedOptionIDs {
			for _, option := range field.Options {
				if option.ID == id {
					names = append(names, option.Name)
					break
				}
			}
		}
		return strings.Join(names, ", ")
	case ChecklistValue:
		names := make([]string, 0, len(typed.Data.Options))
		for _, option := range typed.Data.Options {
			names = append(names, option.Name)
		}
		return strings.Join(names, ", ")
	case RelationValue:
		return strings.Join(typed.RowIDs, ", ")
	case FileMediaValue:
		names := make([]string, 0, len(typed.Items))
		for _, item := range typed.Items {
			names = append(names, item.Name)
		}
		return strings.Join(names, ", ")
	default:
		return ""
	}
}
