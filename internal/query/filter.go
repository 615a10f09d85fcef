package query

import (
	"strings"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/schema"
)

// Filter conditions, one enum per field-type family. The stored condition is
// an opaque string at the schema layer; unknown conditions never match.
const (
	TextIs             = "Is"
	TextIsNot          = "IsNot"
	TextContains       = "Contains"
	TextDoesNotContain = "DoesNotContain"
	TextStartsWith     = "StartsWith"
	TextEndsWith       = "EndsWith"
	TextIsEmpty        = "TextIsEmpty"
	TextIsNotEmpty     = "TextIsNotEmpty"

	NumberEqual                = "Equal"
	NumberNotEqual             = "NotEqual"
	NumberGreaterThan          = "GreaterThan"
	NumberLessThan             = "LessThan"
	NumberGreaterThanOrEqualTo = "GreaterThanOrEqualTo"
	NumberLessThanOrEqualTo    = "LessThanOrEqualTo"
	NumberIsEmpty              = "NumberIsEmpty"
	NumberIsNotEmpty           = "NumberIsNotEmpty"

	CheckboxIsChecked   = "IsChecked"
	CheckboxIsUnChecked = "IsUnChecked"

	OptionIs         = "OptionIs"
	OptionIsNot      = "OptionIsNot"
	OptionIsEmpty    = "OptionIsEmpty"
	OptionIsNotEmpty = "OptionIsNotEmpty"

	DateIs         = "DateIs"
	DateBefore     = "DateBefore"
	DateAfter      = "DateAfter"
	DateOnOrBefore = "DateOnOrBefore"
	DateOnOrAfter  = "DateOnOrAfter"
	DateIsEmpty    = "DateIsEmpty"
	DateIsNotEmpty = "DateIsNotEmpty"

	ChecklistIsComplete   = "IsComplete"
	ChecklistIsIncomplete = "IsIncomplete"
)

// RowMatchesFilters evaluates a view's filter list against one row, composing
// per-filter verdicts with the view's boolean operator. An empty filter list
// matches everything; an unloaded row matches nothing.
func RowMatchesFilters(row schema.Row, loaded bool, filters []schema.Filter, operator schema.FilterOperator, fields []schema.Field) bool {
	if len(filters) == 0 {
		return true
	}
	if !loaded {
		return false
	}
	fieldByID := make(map[string]schema.Field, len(fields))
	for _, field := range fields {
		fieldByID[field.ID] = field
	}
	for _, filter := range filters {
		field, ok := fieldByID[filter.FieldID]
		matched := ok && rowMatchesFilter(row, filter, field)
		if operator == schema.FilterOperatorOr {
			if matched {
				return true
			}
		} else if !matched {
			return false
		}
	}
	return operator != schema.FilterOperatorOr
}

// FilterRows keeps the row ids whose loaded rows pass the view's filters.
func FilterRows(rowIDs []string, filters []schema.Filter, operator schema.FilterOperator, fields []schema.Field, lookup RowLookup) []string {
	if len(filters) == 0 {
		return rowIDs
	}
	kept := make([]string, 0, len(rowIDs))
	for _, rowID := range rowIDs {
		row, loaded := lookup(rowID)
		if RowMatchesFilters(row, loaded, filters, operator, fields) {
			kept = append(kept, rowID)
		}
	}
	return kept
}

func rowMatchesFilter(row schema.Row, filter schema.Filter, field schema.Field) bool {
	value := cells.DecodeCell(row, field)
	return matchValue(value, filter, field)
}

func matchValue(value cells.Value, filter schema.Filter, field schema.Field) bool {
	switch typed := value.(type) {
	case cells.CheckboxValue:
		return matchCheckbox(typed, filter.Condition)
	case cells.SelectValue:
		return matchSelect(typed.SelectedOptionIDs, filter)
	case cells.NumberValue:
		return matchNumber(typed, filter)
	case cells.DateValue:
		return matchDate(typed, filter)
	case cells.ChecklistValue:
		return matchChecklist(typed, filter.Condition)
	default:
		return matchText(cells.DisplayText(value, field), filter)
	}
}

func matchText(text string, filter schema.Filter) bool {
	content := filter.Content
	switch filter.Condition {
	case TextIs:
		return text == content
	case TextIsNot:
		return text != content
	case TextContains:
		return content != "" && strings.Contains(text, content)
	case TextDoesNotContain:
		return !strings.Contains(text, content)
	case TextStartsWith:
		return content != "" && strings.HasPrefix(text, content)
	case TextEndsWith:
		return content != "" && strings.HasSuffix(text, content)
	case TextIsEmpty:
		return text == ""
	case TextIsNotEmpty:
		return text != ""
	default:
		return false
	}
}

func matchNumber(value cells.NumberValue, filter schema.Filter) bool {
	switch filter.Condition {
	case NumberIsEmpty:
		return value.Raw == ""
	case NumberIsNotEmpty:
		return value.Raw != ""
	}
	if value.Raw == "" {
		return false
	}
	number := value.Float()
	target := schema.AsFloat(filter.Content)
	switch filter.Condition {
	case NumberEqual:
		return number == target
	case NumberNotEqual:
		return number != target
	case NumberGreaterThan:
		return number > target
	case NumberLessThan:
		return number < target
	case NumberGreaterThanOrEqualTo:
		return number >= target
	case NumberLessThanOrEqualTo:
		return number <= target
	default:
		return false
	}
}

func matchCheckbox(value cells.CheckboxValue, condition string) bool {
	switch condition {
	case CheckboxIsChecked:
		return value.Checked
	case CheckboxIsUnChecked:
		return !value.Checked
	default:
		return false
	}
}

// matchSelect evaluates option conditions; filter content is a comma-joined
// option id list.
func matchSelect(selectedIDs []string, filter schema.Filter) bool {
	targetIDs := cells.SplitOptionIDs(filter.Content)
	switch filter.Condition {
	case OptionIs:
		for _, selected := range selectedIDs {
			for _, target := range targetIDs {
				if selected == target {
					return true
				}
			}
		}
		return false
	case OptionIsNot:
		for _, selected := range selectedIDs {
			for _, target := range targetIDs {
				if selected == target {
					return false
				}
			}
		}
		return true
	case OptionIsEmpty:
		return len(selectedIDs) == 0
	case OptionIsNotEmpty:
		return len(selectedIDs) > 0
	default:
		return false
	}
}

func matchDate(value cells.DateValue, filter schema.Filter) bool {
	switch filter.Condition {
	case DateIsEmpty:
		return value.Timestamp == 0
	case DateIsNotEmpty:
		return value.Timestamp != 0
	}
	if value.Timestamp == 0 {
		return false
	}
	target := schema.AsInt64(filter.Content)
	cellDay := value.Timestamp / 86400
	targetDay := target / 86400
	switch filter.Condition {
	case DateIs:
		return cellDay == targetDay
	case DateBefore:
		return cellDay < targetDay
	case DateAfter:
		return cellDay > targetDay
	case DateOnOrBefore:
		return cellDay <= targetDay
	case DateOnOrAfter:
		return cellDay >= targetDay
	default:
		return false
	}
}

func matchChecklist(value cells.ChecklistValue, condition string) bool {
	complete := len(value.Data.Options) > 0 && value.Data.Percentage() >= 1
	switch condition {
	case ChecklistIsComplete:
		return complete
	case ChecklistIsIncomplete:
		return !complete
	default:
		return false
	}
}
