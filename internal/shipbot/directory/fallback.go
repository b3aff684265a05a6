package directory

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseFallback reads the FACTORIES_CONFIG JSON object mapping user IDs to their
// factories. A value is a tab name, a {name, tab_name} object or a list of either.
// The map may also be nested under a "users" key.
//
//	{"1001": "factory_a", "1002": [{"name": "North", "tab_name": "north"}, "south"]}
func ParseFallback(raw string) (map[string][]Factory, error) {
	out := make(map[string][]Factory)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("factories config: %w", err)
	}
	if users, ok := doc["users"].(map[string]any); ok {
		doc = users
	}
	for user, v := range doc {
		items, ok := v.([]any)
		if !ok {
			items = []any{v}
		}
		for _, item := range items {
			f, err := decodeFactory(item)
			if err != nil {
				return nil, fmt.Errorf("factories config for user %s: %w", user, err)
			}
			out[user] = append(out[user], f)
		}
	}
	return out, nil
}

func decodeFactory(v any) (Factory, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return Factory{}, fmt.Errorf("empty tab name")
		}
		return Factory{Name: s, TabName: s}, nil
	}
	var f Factory
	if err := mapstructure.Decode(v, &f); err != nil {
		return Factory{}, err
	}
	if f.TabName == "" {
		return Factory{}, fmt.Errorf("tab_name is required")
	}
	if f.Name == "" {
		f.Name = f.TabName
	}
	return f, nil
}
