package omni

import (
	"fmt"
	"strings"
)

// renderTemplate fills {Name} placeholders from args in order and returns
// the message together with the named values. "{{" and "}}" produce literal
// braces. A placeholder without a matching argument is left verbatim.
// Format and alignment suffixes ({Elapsed:0.00}, {Name,10}) are dropped from
// the name, and the capture hints @ and $ are ignored.
//
//	renderTemplate("User {UserID} logged in from {IP}", []interface{}{42, "10.0.0.1"})
//	// "User 42 logged in from 10.0.0.1", {"UserID": 42, "IP": "10.0.0.1"}
func renderTemplate(template string, args []interface{}) (string, map[string]interface{}) {
	if !strings.ContainsAny(template, "{}") {
		return template, nil
	}

	var sb strings.Builder
	sb.Grow(len(template) + 16)
	var named map[string]interface{}
	next := 0

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				sb.WriteString(template[i:])
				return sb.String(), named
			}
			raw := template[i+1 : i+1+end]
			name := placeholderName(raw)
			if name == "" || next >= len(args) {
				sb.WriteString(template[i : i+end+2])
			} else {
				value := args[next]
				next++
				sb.WriteString(fmt.Sprint(value))
				if named == nil {
					named = make(map[string]interface{})
				}
				named[name] = value
			}
			i += end + 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), named
}

func placeholderName(raw string) string {
	if idx := strings.IndexAny(raw, ":,"); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimLeft(strings.TrimSpace(raw), "@$")
	if raw == "" || strings.ContainsAny(raw, "{ \t") {
		return ""
	}
	return raw
}
