package execution

import (
	"fmt"
	"reflect"
	"time"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Coercion helpers. Values cross package boundaries as any: runner
// outputs, JSON-decoded node config and external command results all
// land here, so numbers in particular arrive as int, float64 or
// json.Number-ish types.

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value %T is not numeric", v)
}

// asSlice flattens any slice value to []any.
func asSlice(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("value %T is not a collection", v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// asPosition resolves a stage position from the kinds of values that
// can arrive on a POSITION input. An OBJECT wired to a POSITION port
// contributes its centroid, which is what makes that connection legal.
func asPosition(v any) (domain.Position, error) {
	switch p := v.(type) {
	case domain.Position:
		return p, nil
	case *domain.Position:
		return *p, nil
	case domain.DetectedObject:
		return p.Centroid, nil
	case *domain.DetectedObject:
		return p.Centroid, nil
	case map[string]any:
		pos := domain.Position{}
		var err error
		if pos.X, err = asFloat(p["x"]); err != nil {
			return pos, fmt.Errorf("position x: %w", err)
		}
		if pos.Y, err = asFloat(p["y"]); err != nil {
			return pos, fmt.Errorf("position y: %w", err)
		}
		if pos.Z, err = asFloat(p["z"]); err != nil {
			return pos, fmt.Errorf("position z: %w", err)
		}
		return pos, nil
	}
	return domain.Position{}, fmt.Errorf("value %T is not a position", v)
}

// asObject resolves a detected object from an OBJECT input value.
func asObject(v any) (domain.DetectedObject, error) {
	switch o := v.(type) {
	case domain.DetectedObject:
		return o, nil
	case *domain.DetectedObject:
		return *o, nil
	}
	return domain.DetectedObject{}, fmt.Errorf("value %T is not a detected object", v)
}

// Config accessors with defaults. Node config maps come from JSON, so
// numbers are float64 and lists are []any.

func configString(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func configFloat(cfg map[string]any, key string, fallback float64) float64 {
	if v, ok := cfg[key]; ok {
		if f, err := asFloat(v); err == nil {
			return f
		}
	}
	return fallback
}

func configStrings(cfg map[string]any, key string) []string {
	v, ok := cfg[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// configDuration reads a duration given in seconds.
func configDuration(cfg map[string]any, key string, fallback time.Duration) time.Duration {
	if v, ok := cfg[key]; ok {
		if f, err := asFloat(v); err == nil && f > 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}

func configMap(cfg map[string]any, key string) map[string]any {
	if v, ok := cfg[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}
