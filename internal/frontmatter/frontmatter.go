// Package frontmatter computes the structured-metadata subset shared by
// all platform variants of a markdown file, and the per-platform deltas.
//
// Frontmatter is an opaque, user-defined YAML mapping, so documents are
// represented as a generic ordered key/value tree rather than a fixed
// schema. The algebra is three operations — Intersect, Subtract, Merge —
// with the round-trip invariant Merge(U, Subtract(F, U)) == F for any
// universal subset U of F.
package frontmatter

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Map is an ordered YAML mapping. Values are scalars (string, int,
// float64, bool, nil), []any sequences, or nested *Map mappings.
type Map struct {
	keys []string
	vals map[string]any
}

// New returns an empty Map.
func New() *Map {
	return &Map{vals: make(map[string]any)}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set stores a value, appending the key if new.
func (m *Map) Set(key string, value any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Parse decodes a YAML document into a Map. An empty document parses to
// an empty Map; a non-mapping document is an error.
func Parse(data []byte) (*Map, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return New(), nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter is not a mapping (line %d)", doc.Line)
	}
	return fromMapping(doc)
}

func fromMapping(n *yaml.Node) (*Map, error) {
	m := New()
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		var key string
		if err := keyNode.Decode(&key); err != nil {
			return nil, fmt.Errorf("frontmatter key at line %d: %w", keyNode.Line, err)
		}
		val, err := fromNode(valNode)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	return m, nil
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		return fromMapping(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.AliasNode:
		return fromNode(n.Alias)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("frontmatter value at line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

// Encode renders a Map as YAML, keys in insertion order.
func Encode(m *Map) ([]byte, error) {
	if m.Len() == 0 {
		return nil, nil
	}
	node, err := toNode(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	return buf.Bytes(), nil
}

func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			valNode, err := toNode(t.vals[k])
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, keyNode, valNode)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			c, err := toNode(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, fmt.Errorf("encoding frontmatter value %v: %w", v, err)
		}
		return n, nil
	}
}

// Equal reports deep, order-insensitive equality of two Maps.
func Equal(a, b *Map) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.keys {
		bv, ok := b.Get(k)
		if !ok || !valueEqual(a.vals[k], bv) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	am, aIsMap := a.(*Map)
	bm, bIsMap := b.(*Map)
	if aIsMap != bIsMap {
		return false
	}
	if aIsMap {
		return Equal(am, bm)
	}
	as, aIsSeq := a.([]any)
	bs, bIsSeq := b.([]any)
	if aIsSeq != bIsSeq {
		return false
	}
	if aIsSeq {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !valueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Intersect returns the keys every document agrees on: nested mappings
// intersect recursively (omitted when the intersection is empty);
// sequences and scalars are included only when identical across all
// documents. Key order follows the first document.
func Intersect(docs ...*Map) *Map {
	if len(docs) == 0 {
		return New()
	}
	out := New()
	first := docs[0]
	for _, k := range first.keys {
		v := first.vals[k]
		if vm, ok := v.(*Map); ok {
			nested := []*Map{vm}
			all := true
			for _, d := range docs[1:] {
				ov, ok := d.Get(k)
				om, isMap := ov.(*Map)
				if !ok || !isMap {
					all = false
					break
				}
				nested = append(nested, om)
			}
			if !all {
				continue
			}
			if common := Intersect(nested...); common.Len() > 0 {
				out.Set(k, common)
			}
			continue
		}
		agree := true
		for _, d := range docs[1:] {
			ov, ok := d.Get(k)
			if !ok || !valueEqual(v, ov) {
				agree = false
				break
			}
		}
		if agree {
			out.Set(k, v)
		}
	}
	return out
}

// Subtract returns the part of a not explained by b: keys absent from
// b, keys whose values differ, and — for nested mappings on both
// sides — the recursive difference (omitted entirely when empty).
func Subtract(a, b *Map) *Map {
	out := New()
	for _, k := range a.keys {
		av := a.vals[k]
		bv, ok := b.Get(k)
		if !ok {
			out.Set(k, av)
			continue
		}
		am, aIsMap := av.(*Map)
		bm, bIsMap := bv.(*Map)
		if aIsMap && bIsMap {
			if diff := Subtract(am, bm); diff.Len() > 0 {
				out.Set(k, diff)
			}
			continue
		}
		if !valueEqual(av, bv) {
			out.Set(k, av)
		}
	}
	return out
}

// Merge deep-merges overlay onto base: overlay wins for conflicting
// scalars and sequences, nested mappings merge recursively. Neither
// input is modified. Base key order is kept; overlay-only keys append
// in overlay order.
func Merge(base, overlay *Map) *Map {
	out := New()
	for _, k := range base.keys {
		out.Set(k, base.vals[k])
	}
	for _, k := range overlay.keys {
		ov := overlay.vals[k]
		if cur, ok := out.Get(k); ok {
			cm, curIsMap := cur.(*Map)
			om, ovIsMap := ov.(*Map)
			if curIsMap && ovIsMap {
				out.Set(k, Merge(cm, om))
				continue
			}
		}
		out.Set(k, ov)
	}
	return out
}

// delimiter is the frontmatter fence line.
const delimiter = "---"

// Split separates a markdown document into its frontmatter block and
// body. ok is false when the document has no frontmatter fence.
func Split(content string) (front, body string, ok bool) {
	if !strings.HasPrefix(content, delimiter+"\n") && content != delimiter {
		return "", content, false
	}
	rest := strings.TrimPrefix(content, delimiter+"\n")
	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return "", content, false
	}
	front = rest[:end+1]
	body = rest[end+1+len(delimiter):]
	body = strings.TrimPrefix(body, "\n")
	return front, body, true
}

// Compose joins a frontmatter document and a markdown body back into
// one file. An empty frontmatter yields the body unchanged.
func Compose(m *Map, body string) (string, error) {
	if m.Len() == 0 {
		return body, nil
	}
	data, err := Encode(m)
	if err != nil {
		return "", err
	}
	return delimiter + "\n" + string(data) + delimiter + "\n\n" + strings.TrimPrefix(body, "\n"), nil
}
