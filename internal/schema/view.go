package schema

import (
	"encoding/json"

	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// Filter is one persisted view filter. Condition values are owned by the
// query engine's per-family predicate tables; this layer stores them opaquely.
type Filter struct {
	ID        string `json:"id"`
	FieldID   string `json:"field_id"`
	Condition string `json:"condition"`
	Content   string `json:"content"`
}

// Sort is one persisted sort key; the first entry of a view's sort list is
// the primary key.
type Sort struct {
	FieldID   string        `json:"field_id"`
	Condition SortCondition `json:"condition"`
}

// View is a decoded view configuration.
type View struct {
	ID             string
	Name           string
	Layout         ViewLayout
	FilterOperator FilterOperator
	Filters        []Filter
	Sorts          []Sort
	GroupFieldID   string
	HiddenFields   map[string]bool
}

// View decodes the view stored under viewID.
func (database Database) View(viewID string) (View, bool) {
	views := database.doc.Root().GetMap(KeyViews)
	if views == nil {
		return View{}, false
	}
	node := views.GetMap(viewID)
	if node == nil {
		return View{}, false
	}
	return decodeView(node), true
}

// Views returns every view configured on the database.
func (database Database) Views() []View {
	views := database.doc.Root().GetMap(KeyViews)
	if views == nil {
		return nil
	}
	decoded := make([]View, 0, views.Len())
	for _, viewID := range views.Keys() {
		if node := views.GetMap(viewID); node != nil {
			decoded = append(decoded, decodeView(node))
		}
	}
	return decoded
}

// WriteView persists a view configuration.
func (database Database) WriteView(view View) {
	if view.ID == "" {
		return
	}
	views := database.doc.Root().EnsureMap(KeyViews)
	node := views.EnsureMap(view.ID)
	node.Set(KeyViewID, view.ID)
	node.Set(KeyViewName, view.Name)
	node.Set(KeyViewLayout, string(view.Layout))
	node.Set(KeyViewFilterOp, string(view.FilterOperator))
	node.Set(KeyViewGroupField, view.GroupFieldID)
	writeEncodedList(node, KeyViewFilters, encodeFilters(view.Filters))
	writeEncodedList(node, KeyViewSorts, encodeSorts(view.Sorts))
	settings := node.EnsureMap(KeyViewFieldSettings)
	for fieldID, hidden := range view.HiddenFields {
		settings.Set(fieldID, hidden)
	}
}

func encodeFilters(filters []Filter) []string {
	encoded := make([]string, 0, len(filters))
	for _, filter := range filters {
		payload, err := json.Marshal(filter)
		if err != nil {
			continue
		}
		encoded = append(encoded, string(payload))
	}
	return encoded
}

func encodeSorts(sorts []Sort) []string {
	encoded := make([]string, 0, len(sorts))
	for _, sort := range sorts {
		payload, err := json.Marshal(sort)
		if err != nil {
			continue
		}
		encoded = append(encoded, string(payload))
	}
	return encoded
}

func writeEncodedList(node *shareddoc.MapNode, key string, encoded []string) {
	list := node.EnsureList(key)
	for list.Len() > 0 {
		list.RemoveAt(0)
	}
	for _, item := range encoded {
		list.Push(item)
	}
}

func decodeView(node *shareddoc.MapNode) View {
	rawID, _ := node.Get(KeyViewID)
	rawName, _ := node.Get(KeyViewName)
	rawLayout, _ := node.Get(KeyViewLayout)
	rawOperator, _ := node.Get(KeyViewFilterOp)
	rawGroupField, _ := node.Get(KeyViewGroupField)

	view := View{
		ID:           AsString(rawID),
		Name:         AsString(rawName),
		Layout:       parseLayout(AsString(rawLayout)),
		GroupFieldID: AsString(rawGroupField),
		HiddenFields: make(map[string]bool),
	}
	view.FilterOperator = FilterOperator(AsString(rawOperator))
	if view.FilterOperator != FilterOperatorOr {
		view.FilterOperator = FilterOperatorAnd
	}

	if list := node.GetList(KeyViewFilters); list != nil {
		for _, raw := range list.Values() {
			var filter Filter
			if err := json.Unmarshal([]byte(AsString(raw)), &filter); err != nil {
				continue
			}
			if filter.FieldID == "" {
				continue
			}
			view.Filters = append(view.Filters, filter)
		}
	}
	if list := node.GetList(KeyViewSorts); list != nil {
		for _, raw := range list.Values() {
			var sort Sort
			if err := json.Unmarshal([]byte(AsString(raw)), &sort); err != nil {
				continue
			}
			if sort.FieldID == "" {
				continue
			}
			if sort.Condition != SortDescending {
				sort.Condition = SortAscending
			}
			view.Sorts = append(view.Sorts, sort)
		}
	}
	if settings := node.GetMap(KeyViewFieldSettings); settings != nil {
		for _, fieldID := range settings.Keys() {
			raw, _ := settings.Get(fieldID)
			view.HiddenFields[fieldID] = AsBool(raw)
		}
	}
	return view
}

func parseLayout(raw string) ViewLayout {
	switch ViewLayout(raw) {
	case ViewLayoutBoard, ViewLayoutCalendar:
		return ViewLayout(raw)
	default:
		return ViewLayoutGrid
	}
}
