package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/receipt-vision/internal/document"
)

// llmValue is a single field as the language model analyzers report it
type llmValue struct {
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
}

type llmDocument map[string]json.RawMessage

type llmResponse struct {
	Documents []llmDocument `json:"documents"`
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"02-01-2006",
}

// parseDocumentsJSON parses the JSON answer of a language model analyzer into
// provider documents. The answer is either {"documents": [...]} or a single
// document object.
func parseDocumentsJSON(text string) ([]document.Document, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, malformed("parsing model answer", fmt.Errorf("no JSON object found in response"))
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, malformed("parsing model answer", fmt.Errorf("invalid JSON object in response"))
	}
	raw := []byte(text[startIdx : endIdx+1])

	var resp llmResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, malformed("parsing model answer", err)
	}
	if resp.Documents == nil {
		var single llmDocument
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, malformed("parsing model answer", err)
		}
		resp.Documents = []llmDocument{single}
	}

	docs := make([]document.Document, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		doc, err := d.toDocument()
		if err != nil {
			return nil, malformed("parsing model answer", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (d llmDocument) toDocument() (document.Document, error) {
	doc := document.Document{DocType: "receipt", Fields: map[string]document.Field{}}

	for _, name := range document.FieldNames {
		raw, ok := d[string(name)]
		if !ok || isNull(raw) {
			continue
		}

		if name == document.Items {
			var items []map[string]json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return doc, fmt.Errorf("decoding %s: %w", name, err)
			}
			arr := document.Field{Type: document.TypeArray}
			for _, item := range items {
				obj := document.Field{Type: document.TypeObject, ValueObject: map[string]document.Field{}}
				for _, itemName := range document.ItemFieldNames {
					itemRaw, ok := item[string(itemName)]
					if !ok {
						continue
					}
					v := decodeValue(itemRaw)
					if isNull(v.Value) {
						continue
					}
					obj.ValueObject[string(itemName)] = toField(string(itemName), v)
				}
				arr.ValueArray = append(arr.ValueArray, obj)
			}
			doc.Fields[string(name)] = arr
			continue
		}

		v := decodeValue(raw)
		if isNull(v.Value) {
			continue
		}
		doc.Fields[string(name)] = toField(string(name), v)
	}

	return doc, nil
}

func toField(name string, v llmValue) document.Field {
	f := document.Field{Confidence: v.Confidence}

	var n float64
	if err := json.Unmarshal(v.Value, &n); err == nil {
		f.Type = document.TypeNumber
		f.ValueNumber = &n
		f.Content = strconv.FormatFloat(n, 'f', -1, 64)
		return f
	}

	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		s = string(v.Value)
	}
	s = strings.TrimSpace(s)
	f.Content = s

	switch document.FieldName(name) {
	case document.TransactionDate:
		if date, ok := normalizeDate(s); ok {
			f.Type = document.TypeDate
			f.ValueDate = &date
			return f
		}
	case document.TransactionTime:
		f.Type = document.TypeTime
		f.ValueTime = &s
		return f
	case document.MerchantPhoneNumber:
		f.Type = document.TypePhoneNumber
		f.ValuePhoneNumber = &s
		return f
	case document.MerchantAddress:
		f.Type = document.TypeAddress
		return f
	}

	f.Type = document.TypeString
	f.ValueString = &s
	return f
}

// decodeValue accepts both {"value": x, "confidence": c} and a bare value
func decodeValue(raw json.RawMessage) llmValue {
	var v llmValue
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return llmValue{Value: raw}
}

func normalizeDate(s string) (string, bool) {
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
