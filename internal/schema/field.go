package schema

import "encoding/json"

// FieldType enumerates the supported column types. The cell codec and the
// filter predicate tables both dispatch on this enum; adding a variant means
// extending every switch that consumes it.
type FieldType string

const (
	FieldTypeRichText       FieldType = "RichText"
	FieldTypeNumber         FieldType = "Number"
	FieldTypeDateTime       FieldType = "DateTime"
	FieldTypeSingleSelect   FieldType = "SingleSelect"
	FieldTypeMultiSelect    FieldType = "MultiSelect"
	FieldTypeCheckbox       FieldType = "Checkbox"
	FieldTypeURL            FieldType = "URL"
	FieldTypeChecklist      FieldType = "Checklist"
	FieldTypeLastEditedTime FieldType = "LastEditedTime"
	FieldTypeCreatedTime    FieldType = "CreatedTime"
	FieldTypeRelation       FieldType = "Relation"
	FieldTypeAISummaries    FieldType = "AISummaries"
	FieldTypeAITranslations FieldType = "AITranslations"
	FieldTypeFileMedia      FieldType = "FileMedia"
)

// ParseFieldType maps a raw stored string onto the enum, defaulting unknown
// values to RichText so that stale documents still render as text.
func ParseFieldType(raw string) FieldType {
	switch FieldType(raw) {
	case FieldTypeRichText, FieldTypeNumber, FieldTypeDateTime, FieldTypeSingleSelect,
		FieldTypeMultiSelect, FieldTypeCheckbox, FieldTypeURL, FieldTypeChecklist,
		FieldTypeLastEditedTime, FieldTypeCreatedTime, FieldTypeRelation,
		FieldTypeAISummaries, FieldTypeAITranslations, FieldTypeFileMedia:
		return FieldType(raw)
	default:
		return FieldTypeRichText
	}
}

// SelectOption is one configured choice of a select or checklist field.
type SelectOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Field is a decoded column definition. Options carries the configured
// choices of select and checklist fields; DateFormat, TimeFormat and
// IncludeTime carry the formatting type option of date fields. Empty format
// strings mean "unset, fall back to the viewer preference".
type Field struct {
	ID          string
	Name        string
	Type        FieldType
	IsPrimary   bool
	Options     []SelectOption
	DateFormat  string
	TimeFormat  string
	IncludeTime bool
}

// decodeOptions parses a list of JSON-encoded select options, skipping
// entries that fail to parse or carry no id.
func decodeOptions(rawItems []any) []SelectOption {
	options := make([]SelectOption, 0, len(rawItems))
	for _, rawItem := range rawItems {
		encoded := AsString(rawItem)
		if encoded == "" {
			continue
		}
		var option SelectOption
		if err := json.Unmarshal([]byte(encoded), &option); err != nil {
			continue
		}
		if option.ID == "" {
			continue
		}
		options = append(options, option)
	}
	return options
}
