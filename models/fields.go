package models

import "encoding/json"

// PickFields keeps only the named top-level JSON keys of v. Unknown names
// are ignored. With no fields, or when v does not encode as a JSON object,
// v is returned unchanged.
func PickFields(v any, fields []string) any {
	if len(fields) == 0 || v == nil {
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return v
	}
	picked := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		if val, ok := all[f]; ok {
			picked[f] = val
		}
	}
	return picked
}
