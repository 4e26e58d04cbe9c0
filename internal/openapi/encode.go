package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

type object = orderedmap.OrderedMap[string, any]

// documentFieldOrder lists the top-level fields written first; the rest
// follow sorted
var documentFieldOrder = []string{"openapi", "info", "servers", "tags", "paths", "components"}

// MarshalDocument serializes doc with paths sorted lexicographically and the
// operations under each path in canonical method order (GET, POST, PUT,
// PATCH, DELETE, HEAD, OPTIONS, TRACE)
func MarshalDocument(doc *openapi3.T) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	root, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	root = reorder(root, documentFieldOrder)
	if paths, ok := root.Get("paths"); ok {
		if pathsObj, ok := paths.(*object); ok {
			root.Set("paths", orderPaths(pathsObj))
		}
	}
	return json.Marshal(root)
}

// DocumentYAML converts a serialized document to YAML, keeping its field order
func DocumentYAML(data []byte) ([]byte, error) {
	root, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func orderPaths(paths *object) *object {
	keys := make([]string, 0, paths.Len())
	for pair := paths.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	sort.Strings(keys)

	methods := make([]string, len(methodOrder))
	for method, i := range methodOrder {
		methods[i] = strings.ToLower(method)
	}

	out := orderedmap.New[string, any]()
	for _, key := range keys {
		item, _ := paths.Get(key)
		if itemObj, ok := item.(*object); ok {
			item = reorder(itemObj, methods)
		}
		out.Set(key, item)
	}
	return out
}

// reorder returns obj with the keys of first leading in that order and the
// remaining keys sorted
func reorder(obj *object, first []string) *object {
	out := orderedmap.New[string, any]()
	for _, key := range first {
		if value, ok := obj.Get(key); ok {
			out.Set(key, value)
		}
	}

	rest := make([]string, 0, obj.Len())
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := out.Get(pair.Key); !ok {
			rest = append(rest, pair.Key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		value, _ := obj.Get(key)
		out.Set(key, value)
	}
	return out
}

func decodeObject(data []byte) (*object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	root, ok := value.(*object)
	if !ok {
		return nil, fmt.Errorf("failed to decode document: top level is %T, not an object", value)
	}
	return root, nil
}

// decodeValue reads one JSON value, keeping object keys in input order
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := orderedmap.New[string, any]()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		items := []any{}
		for dec.More() {
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}
