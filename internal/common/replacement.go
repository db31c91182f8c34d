package common

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

// keyRefPattern matches {key-name} references to key/value store entries
var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplaceKeyReferences substitutes {key-name} references with values from kv.
// Lookups are case-insensitive, matching how the key/value store normalizes keys.
// Unknown references are left in place and returned as unresolved.
func ReplaceKeyReferences(input string, kv map[string]string) (string, []string) {
	if !strings.Contains(input, "{") {
		return input, nil
	}

	var unresolved []string
	out := keyRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := kv[strings.ToLower(name)]; ok {
			return value
		}
		unresolved = append(unresolved, name)
		return match
	})
	return out, unresolved
}

// ReplaceInStruct rewrites every exported string reachable from v (a struct
// pointer): plain fields, nested structs, []string and map[string]string.
// Values are never logged since they are usually secrets.
func ReplaceInStruct(v interface{}, kv map[string]string, logger arbor.ILogger) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("ReplaceInStruct requires a struct pointer, got %T", v)
	}

	replace := func(path, s string) string {
		out, unresolved := ReplaceKeyReferences(s, kv)
		for _, key := range unresolved {
			logger.Warn().Str("field", path).Str("key", key).Msg("Unresolved key reference")
		}
		if out != s {
			logger.Debug().Str("field", path).Msg("Replaced key reference")
		}
		return out
	}

	var walk func(path string, val reflect.Value)
	walk = func(path string, val reflect.Value) {
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := val.Field(i)
			if !field.CanSet() {
				continue
			}
			name := path + typ.Field(i).Name

			switch field.Kind() {
			case reflect.String:
				field.SetString(replace(name, field.String()))
			case reflect.Struct:
				walk(name+".", field)
			case reflect.Ptr:
				if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
					walk(name+".", field.Elem())
				}
			case reflect.Slice:
				if field.Type().Elem().Kind() == reflect.String {
					for j := 0; j < field.Len(); j++ {
						elem := field.Index(j)
						elem.SetString(replace(fmt.Sprintf("%s[%d]", name, j), elem.String()))
					}
				}
			case reflect.Map:
				if m, ok := field.Interface().(map[string]string); ok {
					for k, s := range m {
						m[k] = replace(name+"."+k, s)
					}
				}
			}
		}
	}

	walk("", val.Elem())
	return nil
}
