package storage

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query selects and orders documents of one collection.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Apply filters, orders and limits entries. Backends that cannot push a
// query down to their engine call it on the whole collection. Entries
// missing the order field sort last; ties keep key order.
func (q Query) Apply(entries []Entry) []Entry {
	wanted := make([]json.RawMessage, len(q.Filters))
	for i, f := range q.Filters {
		b, err := json.Marshal(f.Value)
		if err != nil {
			return nil
		}
		wanted[i] = b
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q.matches(e.Doc, wanted) {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, aok := out[i].Doc[q.OrderBy]
			b, bok := out[j].Doc[q.OrderBy]
			if !aok || !bok {
				return aok && !bok
			}
			c := compareRaw(a, b)
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) matches(doc Document, wanted []json.RawMessage) bool {
	for i, f := range q.Filters {
		got, ok := doc[f.Field]
		if !ok || compareRaw(got, wanted[i]) != 0 {
			return false
		}
	}
	return true
}

// compareRaw orders two JSON values as timestamps, numbers or strings, in
// that order of preference, falling back to their compact encoding.
func compareRaw(a, b json.RawMessage) int {
	var as, bs string
	if json.Unmarshal(a, &as) == nil && json.Unmarshal(b, &bs) == nil {
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			return at.Compare(bt)
		}
		return strings.Compare(as, bs)
	}
	var af, bf float64
	if json.Unmarshal(a, &af) == nil && json.Unmarshal(b, &bf) == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	var ab, bb bytes.Buffer
	_ = json.Compact(&ab, a)
	_ = json.Compact(&bb, b)
	return bytes.Compare(ab.Bytes(), bb.Bytes())
}
