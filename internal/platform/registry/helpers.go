package registry

import (
	"time"
)

// Helpers de extracción tipada para las factories: evitan las type
// assertions repetitivas al leer valores del map cfg.Custom.

// GetStringConfig extrae un string del custom config con fallback.
func GetStringConfig(custom map[string]any, key, defaultValue string) string {
	if custom == nil {
		return defaultValue
	}
	if val, ok := custom[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// GetIntConfig extrae un int del custom config con fallback.
// Acepta int y float64 (los números de YAML/JSON llegan como float64).
func GetIntConfig(custom map[string]any, key string, defaultValue int) int {
	if custom == nil {
		return defaultValue
	}
	if val, ok := custom[key].(int); ok {
		return val
	}
	if val, ok := custom[key].(float64); ok {
		return int(val)
	}
	return defaultValue
}

// GetBoolConfig extrae un bool del custom config con fallback.
func GetBoolConfig(custom map[string]any, key string, defaultValue bool) bool {
	if custom == nil {
		return defaultValue
	}
	if val, ok := custom[key].(bool); ok {
		return val
	}
	return defaultValue
}

// GetDurationConfig extrae una duración del custom config con fallback.
// Acepta time.Duration, int64/float64 (nanosegundos) o string ("5s", "2m").
func GetDurationConfig(custom map[string]any, key string, defaultValue time.Duration) time.Duration {
	if custom == nil {
		return defaultValue
	}
	val, exists := custom[key]
	if !exists {
		return defaultValue
	}
	switch v := val.(type) {
	case time.Duration:
		return v
	case int64:
		return time.Duration(v)
	case float64:
		return time.Duration(v)
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetSliceConfig extrae un []string del custom config con fallback.
// Convierte []any a []string cuando es necesario.
func GetSliceConfig(custom map[string]any, key string, defaultValue []string) []string {
	if custom == nil {
		return defaultValue
	}
	val, exists := custom[key]
	if !exists {
		return defaultValue
	}
	if slice, ok := val.([]string); ok {
		return slice
	}
	if anySlice, ok := val.([]any); ok {
		out := make([]string, 0, len(anySlice))
		for _, item := range anySlice {
			str, ok := item.(string)
			if !ok {
				return defaultValue
			}
			out = append(out, str)
		}
		return out
	}
	return defaultValue
}

// GetFloat64Config extrae un float64 del custom config con fallback.
func GetFloat64Config(custom map[string]any, key string, defaultValue float64) float64 {
	if custom == nil {
		return defaultValue
	}
	if val, ok := custom[key].(float64); ok {
		return val
	}
	if val, ok := custom[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}
