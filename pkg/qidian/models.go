package qidian

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the JSON wrapper every ajax endpoint answers with
type Envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// FlexString accepts a JSON string or number and keeps its text
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

// categoryData is data of the category endpoint
type categoryData struct {
	Volumes []volume `json:"vs"`
}

type volume struct {
	// VS is 0 for free volumes; missing means paid
	VS       *int           `json:"vS"`
	Chapters []chapterEntry `json:"cs"`
}

type chapterEntry struct {
	ID         FlexString `json:"id"`
	Name       string     `json:"cN"`
	UpdateTime string     `json:"uT"`
}

// Chapter is one entry of a book's catalog
type Chapter struct {
	ID         string
	Name       string
	UpdateTime string
	Free       bool
}

// listData is data of the summary and review list endpoints
type listData struct {
	List []json.RawMessage `json:"list"`
}

// Segment is a commented paragraph of a chapter
type Segment struct {
	ID string
	// Amount is the server-side comment count, "?" when the summary has none
	Amount string
}

var amountFields = []string{"reviewAmount", "amount", "count"}

func parseSegment(raw json.RawMessage) (Segment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Segment{}, err
	}
	var id FlexString
	if v, ok := fields["segmentId"]; ok {
		if err := id.UnmarshalJSON(v); err != nil {
			return Segment{}, fmt.Errorf("segmentId: %w", err)
		}
	}
	if id == "" {
		return Segment{}, fmt.Errorf("summary entry without segmentId")
	}

	seg := Segment{ID: string(id), Amount: "?"}
	for _, name := range amountFields {
		if v, ok := fields[name]; ok {
			seg.Amount = scalarText(v)
			break
		}
	}
	return seg, nil
}

// Comment is a review record with its fields in server order. Values are
// kept as text: strings verbatim, numbers and booleans as written, nested
// values as compact JSON, null as empty.
type Comment struct {
	keys   []string
	values map[string]string
}

// NewComment creates an empty Comment
func NewComment() *Comment {
	return &Comment{values: make(map[string]string)}
}

// Set assigns a field, appending it to the key order when new
func (c *Comment) Set(key, value string) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns a field value
func (c *Comment) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the field names in order
func (c *Comment) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of fields
func (c *Comment) Len() int {
	return len(c.keys)
}

// UnmarshalJSON decodes an object while keeping key order
func (c *Comment) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("comment is not an object")
	}

	*c = Comment{values: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected comment key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		c.Set(key, scalarText(raw))
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the fields in order, all values as strings
func (c *Comment) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(c.values[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return strings.Trim(string(raw), `"`)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return string(raw)
}
