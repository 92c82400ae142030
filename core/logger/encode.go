package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type encoder interface {
	encode(rec record) ([]byte, error)
}

func newEncoder(format logFormat, order []string) encoder {
	if format == formatJSON {
		return jsonEncoder{order: order}
	}
	return kvEncoder{order: order}
}

// orderedKeys lists the keys of rec: those named in order first, then the
// rest alphabetically.
func orderedKeys(rec record, order []string) []string {
	keys := make([]string, 0, len(rec))
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
		if _, ok := rec[k]; ok {
			keys = append(keys, k)
		}
	}
	head := len(keys)
	for k := range rec {
		if !listed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[head:])
	return keys
}

type jsonEncoder struct{ order []string }

func (e jsonEncoder) encode(rec record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range orderedKeys(rec, e.order) {
		data, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type kvEncoder struct{ order []string }

func (e kvEncoder) encode(rec record) ([]byte, error) {
	var buf bytes.Buffer
	for i, k := range orderedKeys(rec, e.order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(rec[k]))
	}
	return buf.Bytes(), nil
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
