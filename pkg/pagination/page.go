package pagination

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

// Record is one item of a page, kept as the raw JSON the server sent.
type Record = json.RawMessage

// Page is one decoded response body.
type Page struct {
	Items []Record

	// Next is the URL of the following page; only meaningful when HasNext.
	Next    string
	HasNext bool
}

var pageParsers fastjson.ParserPool

// DecodePage decodes a page body. "items" must be present and be an array.
// "pagination" and "pagination.next" are optional; a null or empty next link
// ends the pagination.
func DecodePage(body []byte) (*Page, error) {
	p := pageParsers.Get()
	defer pageParsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: body is a %s, not an object", ErrDecode, v.Type())
	}

	itemsValue := v.Get("items")
	if itemsValue == nil {
		return nil, fmt.Errorf("%w: missing items", ErrDecode)
	}
	items, err := itemsValue.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: items: %v", ErrDecode, err)
	}

	page := &Page{Items: make([]Record, 0, len(items))}
	for _, item := range items {
		page.Items = append(page.Items, Record(item.MarshalTo(nil)))
	}

	pagination := v.Get("pagination")
	if pagination == nil || pagination.Type() == fastjson.TypeNull {
		return page, nil
	}
	if pagination.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: pagination is a %s, not an object", ErrDecode, pagination.Type())
	}

	next := pagination.Get("next")
	if next == nil {
		return page, nil
	}
	switch next.Type() {
	case fastjson.TypeNull:
	case fastjson.TypeString:
		if link := string(next.GetStringBytes()); link != "" {
			page.Next = link
			page.HasNext = true
		}
	default:
		return nil, fmt.Errorf("%w: pagination.next is a %s, not a string", ErrDecode, next.Type())
	}

	return page, nil
}

// RecordTime reads a timestamp field of a record without decoding the rest of it.
func RecordTime(rec Record, field string) (time.Time, bool) {
	p := pageParsers.Get()
	defer pageParsers.Put(p)

	v, err := p.ParseBytes(rec)
	if err != nil {
		return time.Time{}, false
	}
	raw := v.GetStringBytes(field)
	if raw == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
