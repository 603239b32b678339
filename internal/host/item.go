// Package host defines the narrow contract nodes have with the workflow host:
// the item data flow, binary attachments and the functions available while
// executing or answering a webhook.
package host

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Item is one unit of the host's data flow.
type Item struct {
	JSON       map[string]interface{} `json:"json"`
	Binary     map[string]BinaryData  `json:"binary,omitempty"`
	Error      string                 `json:"error,omitempty"`
	PairedItem *int                   `json:"pairedItem,omitempty"`
}

// BinaryData is an attachment on an item. Data is base64 encoded in JSON.
type BinaryData struct {
	ID            string `json:"id"`
	Data          []byte `json:"data"`
	MimeType      string `json:"mimeType"`
	FileExtension string `json:"fileExtension,omitempty"`
	FileName      string `json:"fileName,omitempty"`
	FileSize      int    `json:"fileSize"`
}

// PrepareBinaryData wraps raw bytes as an attachment. When mimeType is empty
// it is taken from the file name, then sniffed from the content.
func PrepareBinaryData(data []byte, fileName, mimeType string) BinaryData {
	if mimeType == "" && fileName != "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fileName))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}

	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	if ext == "" {
		ext = extensionFor(mimeType)
	}

	return BinaryData{
		ID:            uuid.NewString(),
		Data:          data,
		MimeType:      mimeType,
		FileExtension: ext,
		FileName:      fileName,
		FileSize:      len(data),
	}
}

var preferredExtensions = map[string]string{
	"application/pdf": "pdf",
	"text/html":       "html",
	"text/plain":      "txt",
	"image/png":       "png",
	"image/jpeg":      "jpg",
}

func extensionFor(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	if ext, ok := preferredExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return ""
}

// ErrorItem is what a continue-on-fail node emits for a failed input item.
func ErrorItem(input Item, itemIndex int, err error) Item {
	idx := itemIndex
	return Item{JSON: input.JSON, Error: err.Error(), PairedItem: &idx}
}

// ToObject turns any JSON value into an item payload. Objects are used as is,
// everything else is wrapped under "response".
func ToObject(value interface{}) map[string]interface{} {
	if obj, ok := value.(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{"response": value}
}

// DecodeItems parses a JSON items array. Bare objects are accepted as items
// without the json wrapper.
func DecodeItems(raw json.RawMessage) ([]Item, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []Item{{JSON: map[string]interface{}{}}}, nil
	}

	var entries []map[string]interface{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("items must be an array of objects: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if _, wrapped := entry["json"]; !wrapped {
			items = append(items, Item{JSON: entry})
			continue
		}
		data, _ := json.Marshal(entry)
		var item Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		if item.JSON == nil {
			item.JSON = map[string]interface{}{}
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		items = append(items, Item{JSON: map[string]interface{}{}})
	}
	return items, nil
}
