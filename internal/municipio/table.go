package municipio

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// parseJSON reads either [{"id":..., "nome":...}] or {"code": {"nome": ...}}
func parseJSON(data []byte) (map[string]string, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode municipality table: %w", err)
	}
	return tableFrom(raw)
}

// parseYAML accepts the same shapes as parseJSON
func parseYAML(data []byte) (map[string]string, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode municipality table: %w", err)
	}
	return tableFrom(raw)
}

func tableFrom(raw any) (map[string]string, error) {
	names := map[string]string{}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := idString(firstKey(m, "id", "codigo", "code"))
			name := nameString(firstKey(m, "nome", "name"))
			if id != "" && name != "" {
				names[id] = name
			}
		}
	case map[string]any:
		for code, item := range v {
			var name string
			switch iv := item.(type) {
			case map[string]any:
				name = nameString(firstKey(iv, "nome", "name"))
			default:
				name = nameString(iv)
			}
			if code = strings.TrimSpace(code); code != "" && name != "" {
				names[code] = name
			}
		}
	default:
		return nil, fmt.Errorf("unexpected municipality table of type %T", raw)
	}
	return names, nil
}

func firstKey(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func nameString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// idString renders a code stored as text or as any numeric type
func idString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(n)
	case json.Number:
		return n.String()
	case float64:
		if n == math.Trunc(n) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(n))
	}
}
