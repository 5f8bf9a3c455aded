package toolinfo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

// jsonSchemaTypeNames maps JSON-Schema primitive names to their source-language names.
var jsonSchemaTypeNames = map[string]string{
	"string":  "str",
	"integer": "int",
	"number":  "float",
	"boolean": "bool",
	"object":  "dict",
	"array":   "list",
}

// JSONSchemaTypeName maps a JSON-Schema type (or list of types) onto the
// annotation vocabulary. The first non-null member of a type list is used;
// a missing or null type is treated as a string.
func JSONSchemaTypeName(types ...string) string {
	var t string
	for _, candidate := range types {
		if candidate != "null" {
			t = candidate
			break
		}
	}
	if t == "" {
		return "str"
	}
	if mapped, ok := jsonSchemaTypeNames[t]; ok {
		return mapped
	}
	return t
}

// FromInfo converts a get_info() payload into a ToolInfo:
// {"function": {"name": ..., "parameters": {"properties": {...}, "required": [...]}}}.
// Parameters keep their declaration order. A payload without a function
// block yields no parameters and a name mismatch.
func FromInfo(req LoadRequest, info jsonutil.Value) (*models.ToolInfo, error) {
	out := &models.ToolInfo{
		Interface:    req.Interface,
		APIName:      req.APIName,
		Params:       []models.Param{},
		NameMismatch: true,
	}
	if info.IsNull() {
		return out, nil
	}
	if info.Kind() != jsonutil.KindObject {
		return nil, loadError(ReasonInvalidSchema, req.Path, fmt.Errorf("get_info returned %s, want object", info.Kind()))
	}

	fn, ok := info.Lookup("function")
	if !ok || fn.IsNull() {
		return out, nil
	}
	if fn.Kind() != jsonutil.KindObject {
		return nil, loadError(ReasonInvalidSchema, req.Path, fmt.Errorf("function is %s, want object", fn.Kind()))
	}

	if name, ok := fn.Lookup("name"); ok && name.Kind() == jsonutil.KindString {
		s, _ := name.AsString()
		if s = strings.TrimSpace(s); s != "" {
			out.NameMismatch = !strings.EqualFold(s, req.APIName)
		}
	}

	paramsValue, ok := fn.Lookup("parameters")
	if !ok || paramsValue.IsNull() {
		return out, nil
	}
	params, err := decodeParameters(paramsValue)
	if err != nil {
		return nil, loadError(ReasonInvalidSchema, req.Path, err)
	}
	out.Params = params
	return out, nil
}

func decodeParameters(v jsonutil.Value) ([]models.Param, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode parameters schema: %w", err)
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	params := []models.Param{}
	for _, name := range propertyOrder(v, schema.Properties) {
		prop := schema.Properties[name]
		types := []string{}
		if prop != nil {
			if prop.Type != "" {
				types = append(types, prop.Type)
			}
			types = append(types, prop.Types...)
		}
		params = append(params, models.Param{
			Name:     name,
			Type:     JSONSchemaTypeName(types...),
			Optional: !required[name],
		})
	}
	return params, nil
}

// propertyOrder returns property names in the order the payload declared them.
// The decoded schema holds properties in a map, so the order comes from the
// ordered payload; anything it cannot account for is appended sorted.
func propertyOrder(v jsonutil.Value, props map[string]*jsonschema.Schema) []string {
	var order []string
	seen := make(map[string]bool, len(props))
	if p, ok := v.Lookup("properties"); ok {
		if obj, err := p.AsObject(); err == nil {
			for _, k := range obj.Keys() {
				if _, known := props[k]; known && !seen[k] {
					seen[k] = true
					order = append(order, k)
				}
			}
		}
	}
	var rest []string
	for k := range props {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
