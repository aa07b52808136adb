package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Groupings is serialized as grouping-key -> group-id -> {id, name, recipeIds}.
// Key order in the document is preserved in both directions.

func (gs *Groupings) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	out := NewGroupings()
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		gr := NewGrouping(key)
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("grouping %q: %w", key, err)
		}
		for dec.More() {
			gid, err := readKey(dec)
			if err != nil {
				return fmt.Errorf("grouping %q: %w", key, err)
			}
			var g Group
			if err := dec.Decode(&g); err != nil {
				return fmt.Errorf("grouping %q group %q: %w", key, gid, err)
			}
			if g.ID == "" {
				g.ID = gid
			}
			if g.ID != gid {
				return fmt.Errorf("grouping %q: group key %q does not match id %q", key, gid, g.ID)
			}
			if g.RecipeIDs == nil {
				g.RecipeIDs = []string{}
			}
			if !gr.Add(&g) {
				return fmt.Errorf("grouping %q: duplicate group id %q", key, gid)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return fmt.Errorf("grouping %q: %w", key, err)
		}
		if !out.Add(gr) {
			return fmt.Errorf("duplicate grouping key %q", key)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	*gs = *out
	return nil
}

func (gs Groupings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range gs.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		gb, err := json.Marshal(gs.ByKey[k])
		if err != nil {
			return nil, err
		}
		buf.Write(gb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (gr *Grouping) MarshalJSON() ([]byte, error) {
	if gr == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range gr.Ordered() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(g.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		gb, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		buf.Write(gb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}
