package loader

import (
	"encoding/json"

	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// rowSnapshotPayload is the JSON form a row document takes inside the local
// snapshot cache. Cell data is either a scalar or an ordered string list,
// matching the two shapes the shared document stores.
type rowSnapshotPayload struct {
	ID           string                         `json:"id"`
	DatabaseID   string                         `json:"database_id"`
	Visibility   bool                           `json:"visibility"`
	Height       int64                          `json:"height,omitempty"`
	CreatedAt    int64                          `json:"created_at"`
	LastModified int64                          `json:"last_modified"`
	Cells        map[string]cellSnapshotPayload `json:"cells,omitempty"`
	Meta         map[string]string              `json:"meta,omitempty"`
	Comments     []string                       `json:"comments,omitempty"`
}

type cellSnapshotPayload struct {
	CreatedAt    int64    `json:"created_at"`
	LastModified int64    `json:"last_modified"`
	FieldType    string   `json:"field_type"`
	Data         string   `json:"data,omitempty"`
	ListData     []string `json:"list_data,omitempty"`
}

// EncodeRowSnapshot serializes a row document for the snapshot cache.
func EncodeRowSnapshot(row schema.Row) (string, error) {
	payload := rowSnapshotPayload{
		ID:           row.ID(),
		DatabaseID:   row.DatabaseID(),
		Visibility:   row.Visibility(),
		Height:       row.Height(),
		CreatedAt:    row.CreatedAt(),
		LastModified: row.LastModified(),
	}

	if cellsNode := row.Doc().Root().GetMap(schema.KeyRowCells); cellsNode != nil {
		payload.Cells = make(map[string]cellSnapshotPayload)
		for _, fieldID := range cellsNode.Keys() {
			cell := cellsNode.GetMap(fieldID)
			if cell == nil {
				continue
			}
			rawCreated, _ := cell.Get(schema.KeyCellCreatedAt)
			rawModified, _ := cell.Get(schema.KeyCellLastModified)
			rawType, _ := cell.Get(schema.KeyCellFieldType)
			encoded := cellSnapshotPayload{
				CreatedAt:    schema.AsInt64(rawCreated),
				LastModified: schema.AsInt64(rawModified),
				FieldType:    schema.AsString(rawType),
			}
			if list := cell.GetList(schema.KeyCellData); list != nil {
				for _, item := range list.Values() {
					encoded.ListData = append(encoded.ListData, schema.AsString(item))
				}
			} else {
				rawData, _ := cell.Get(schema.KeyCellData)
				encoded.Data = schema.AsString(rawData)
			}
			payload.Cells[fieldID] = encoded
		}
	}

	if metaNode := row.Doc().Root().GetMap(schema.KeyRowMeta); metaNode != nil {
		payload.Meta = make(map[string]string)
		for _, key := range metaNode.Keys() {
			raw, _ := metaNode.Get(key)
			payload.Meta[key] = schema.AsString(raw)
		}
	}

	if commentsNode := row.Doc().Root().GetList(schema.KeyRowComments); commentsNode != nil {
		for _, raw := range commentsNode.Values() {
			payload.Comments = append(payload.Comments, schema.AsString(raw))
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeRowSnapshot materializes a row document from a cached snapshot
// payload.
func DecodeRowSnapshot(doc *shareddoc.Document, payloadJSON string) (schema.Row, error) {
	var payload rowSnapshotPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return schema.Row{}, err
	}

	root := doc.Root()
	root.Set(schema.KeyRowID, payload.ID)
	root.Set(schema.KeyRowDatabaseID, payload.DatabaseID)
	root.Set(schema.KeyRowVisibility, payload.Visibility)
	if payload.Height != 0 {
		root.Set(schema.KeyRowHeight, payload.Height)
	}
	root.Set(schema.KeyRowCreatedAt, payload.CreatedAt)
	root.Set(schema.KeyRowLastModified, payload.LastModified)

	if len(payload.Cells) > 0 {
		cellsNode := root.EnsureMap(schema.KeyRowCells)
		for fieldID, encoded := range payload.Cells {
			cell := cellsNode.EnsureMap(fieldID)
			cell.Set(schema.KeyCellCreatedAt, encoded.CreatedAt)
			cell.Set(schema.KeyCellLastModified, encoded.LastModified)
			cell.Set(schema.KeyCellFieldType, encoded.FieldType)
			if len(encoded.ListData) > 0 {
				list := cell.EnsureList(schema.KeyCellData)
				for _, item := range encoded.ListData {
					list.Push(item)
				}
			} else {
				cell.Set(schema.KeyCellData, encoded.Data)
			}
		}
	}

	if len(payload.Meta) > 0 {
		metaNode := root.EnsureMap(schema.KeyRowMeta)
		for key, value := range payload.Meta {
			metaNode.Set(key, value)
		}
	}

	if len(payload.Comments) > 0 {
		commentsNode := root.EnsureList(schema.KeyRowComments)
		for _, raw := range payload.Comments {
			commentsNode.Push(raw)
		}
	}

	return schema.NewRow(doc), nil
}
