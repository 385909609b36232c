// Package training parses uploaded JSON training files into typed records.
// Every element of an upload is classified into exactly one Kind; only the
// recognized kinds can become training data.
package training

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// MinContentChars is the shortest content accepted as training data.
const MinContentChars = 10

var (
	// ErrInvalidJSON is returned when an upload is not parseable JSON.
	ErrInvalidJSON = errors.New("invalid training json")
	// ErrUnrecognizedShape marks an element with no usable fields.
	ErrUnrecognizedShape = errors.New("unrecognized training item")
	// ErrContentTooShort marks content below MinContentChars.
	ErrContentTooShort = errors.New("content too short (min 10 characters)")
)

// Kind tags the shape an element was recognized as.
type Kind string

// Recognized shapes, checked in this order.
const (
	KindQuestionAnswer Kind = "question_answer"
	KindTitleContent   Kind = "title_content"
	KindNameValue      Kind = "name_value"
	KindKeyValue       Kind = "key_value"
	KindUnrecognized   Kind = "unrecognized"
)

// Record is one classified upload element.
type Record struct {
	Kind     Kind
	Title    string
	Content  string
	Category string
	Source   string
	// Index is the element's position in the upload.
	Index int
}

// Label names the record in error reports.
func (r Record) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return fmt.Sprintf("item %d", r.Index+1)
}

// Defaults supplies upload-wide values for fields an element leaves empty.
type Defaults struct {
	Category         string
	Source           string
	FileType         string
	OriginalFileName string
}

// Item converts the record into a TrainingData draft without ID or
// timestamps. Unrecognized records and short content are rejected.
func (r Record) Item(d Defaults) (store.TrainingData, error) {
	if r.Kind == KindUnrecognized {
		return store.TrainingData{}, ErrUnrecognizedShape
	}
	content := strings.TrimSpace(r.Content)
	if utf8.RuneCountInString(content) < MinContentChars {
		return store.TrainingData{}, ErrContentTooShort
	}
	title := r.Title
	if title == "" {
		title = "Untitled"
	}
	fileType := d.FileType
	if fileType == "" {
		fileType = "json"
	}
	return store.TrainingData{
		Title:            title,
		Content:          content,
		Category:         firstNonEmpty(r.Category, d.Category, store.DefaultCategory),
		Source:           firstNonEmpty(r.Source, d.Source, store.DefaultSource),
		FileType:         fileType,
		OriginalFileName: d.OriginalFileName,
		IsActive:         true,
		WordCount:        len(strings.Fields(content)),
	}, nil
}

// ParseJSON classifies every element of data. The top level may be an array,
// an object wrapping an "items" or "data" array, or a single object.
func ParseJSON(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidJSON)
	}

	var elements []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &elements); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		elements = unwrapList(wrapper, data)
	default:
		return nil, fmt.Errorf("%w: expected an array or object", ErrInvalidJSON)
	}

	records := make([]Record, len(elements))
	for i, raw := range elements {
		records[i] = classify(raw)
		records[i].Index = i
	}
	return records, nil
}

func unwrapList(wrapper map[string]json.RawMessage, whole []byte) []json.RawMessage {
	for _, key := range []string{"items", "data"} {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			return list
		}
	}
	return []json.RawMessage{whole}
}

func classify(raw json.RawMessage) Record {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Record{Kind: KindUnrecognized}
	}
	str := func(key string) string {
		return scalarString(fields[key])
	}
	rec := Record{Category: str("category"), Source: str("source")}

	switch {
	case str("question") != "" && str("answer") != "":
		rec.Kind = KindQuestionAnswer
		rec.Title = str("question")
		rec.Content = str("answer")
	case firstNonEmpty(str("content"), str("text"), str("answer")) != "":
		rec.Kind = KindTitleContent
		rec.Title = firstNonEmpty(str("title"), str("question"))
		rec.Content = firstNonEmpty(str("content"), str("text"), str("answer"))
	case str("name") != "" && firstNonEmpty(str("value"), str("description")) != "":
		rec.Kind = KindNameValue
		rec.Title = str("name")
		rec.Content = firstNonEmpty(str("value"), str("description"))
	default:
		lines := keyValueLines(fields)
		if len(lines) == 0 {
			rec.Kind = KindUnrecognized
			return rec
		}
		rec.Kind = KindKeyValue
		rec.Title = firstNonEmpty(str("title"), str("name"))
		rec.Content = strings.Join(lines, "\n")
	}
	return rec
}

// keyValueLines renders scalar fields as "key: value", sorted by key.
// category and source are metadata and are left out.
func keyValueLines(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "category" || key == "source" {
			continue
		}
		if scalarString(fields[key]) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, key := range keys {
		lines[i] = key + ": " + scalarString(fields[key])
	}
	return lines
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
