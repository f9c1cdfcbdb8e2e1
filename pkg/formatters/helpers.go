package formatters

import (
	"fmt"
	"os"
	"reflect"
)

var hostname string

func init() {
	hostname, _ = os.Hostname()
}

// getHostname returns the cached hostname
func getHostname() string {
	return hostname
}

// safeFields creates a safe copy of fields that handles circular references
func safeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	visited := make(map[uintptr]bool)
	result := make(map[string]interface{}, len(fields))

	for k, v := range fields {
		result[k] = safeFieldsCopy(v, visited, 0)
	}

	return result
}

// safeFieldsCopy recursively copies fields with circular reference detection
func safeFieldsCopy(value interface{}, visited map[uintptr]bool, depth int) interface{} {
	const maxDepth = 10
	if depth > maxDepth {
		return "[max depth exceeded]"
	}

	if value == nil {
		return nil
	}

	// Values that describe themselves are rendered as text
	switch s := value.(type) {
	case error:
		return s.Error()
	case fmt.Stringer:
		return s.String()
	}

	v := reflect.ValueOf(value)

	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if visited[addr] {
			return "[circular reference]"
		}
		visited[addr] = true
		defer delete(visited, addr)

		result := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			result[fmt.Sprint(iter.Key().Interface())] = safeFieldsCopy(iter.Value().Interface(), visited, depth+1)
		}
		return result

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return value
		}
		addr := v.Pointer()
		if visited[addr] {
			return "[circular reference]"
		}
		visited[addr] = true
		defer delete(visited, addr)

		result := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			result[i] = safeFieldsCopy(v.Index(i).Interface(), visited, depth+1)
		}
		return result

	case reflect.Array:
		result := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			result[i] = safeFieldsCopy(v.Index(i).Interface(), visited, depth+1)
		}
		return result

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if visited[addr] {
			return "[circular reference]"
		}
		visited[addr] = true
		defer delete(visited, addr)

		return safeFieldsCopy(v.Elem().Interface(), visited, depth+1)

	case reflect.Struct:
		result := make(map[string]interface{})
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if field.IsExported() {
				result[field.Name] = safeFieldsCopy(v.Field(i).Interface(), visited, depth+1)
			}
		}
		return result

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("[%s]", v.Kind())

	default:
		return value
	}
}
