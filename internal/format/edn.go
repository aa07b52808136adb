package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteEDN writes v as EDN. Values go through their JSON encoding first so json tags and
// custom marshalers (ordered groupings) apply; object key order is kept as encoded.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var buf bytes.Buffer
	enc := ednEncoder{dec: dec, pretty: pretty}
	if err := enc.value(&buf, 0); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednEncoder struct {
	dec    *json.Decoder
	pretty bool
}

func (e ednEncoder) value(buf *bytes.Buffer, level int) error {
	tok, err := e.dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case nil:
		buf.WriteString("nil")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		buf.WriteString(strconv.Quote(t))
	case json.Number:
		buf.WriteString(t.String())
	case json.Delim:
		switch t {
		case '[':
			return e.seq(buf, level, '[', ']', false)
		case '{':
			return e.seq(buf, level, '{', '}', true)
		}
		return fmt.Errorf("edn: unexpected %v", t)
	default:
		return fmt.Errorf("edn: unexpected token %T", tok)
	}
	return nil
}

// seq writes the elements of an already opened array or object.
func (e ednEncoder) seq(buf *bytes.Buffer, level int, open, close byte, keyed bool) error {
	buf.WriteByte(open)
	n := 0
	for e.dec.More() {
		if n > 0 && !e.pretty {
			buf.WriteByte(' ')
		}
		if e.pretty {
			buf.WriteByte('\n')
			buf.WriteString(strings.Repeat("  ", level+1))
		}
		if keyed {
			tok, err := e.dec.Token()
			if err != nil {
				return err
			}
			key, _ := tok.(string)
			buf.WriteByte(':')
			buf.WriteString(ednKeyword(key))
			buf.WriteByte(' ')
		}
		if err := e.value(buf, level+1); err != nil {
			return err
		}
		n++
	}
	if _, err := e.dec.Token(); err != nil {
		return err
	}
	if e.pretty && n > 0 {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat("  ", level))
	}
	buf.WriteByte(close)
	return nil
}

// ednKeyword makes a JSON key usable as a keyword: whitespace becomes '-'.
func ednKeyword(s string) string {
	return strings.Join(strings.Fields(s), "-")
}
