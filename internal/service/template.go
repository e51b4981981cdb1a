// internal/service/template.go
package service

import (
	"strings"

	"github.com/leadgrid/leadgrid-backend/internal/model"
)

// RenderTemplate substitutes {{field}} placeholders in template with values
// from the recipient payload. A placeholder may carry fallbacks separated by
// pipes: {{first_name|company|"there"}} evaluates candidates left to right and
// uses the first non-empty one; double-quoted segments are literals. A
// placeholder that resolves to nothing renders as an empty string, never as
// the literal placeholder text.
//
// Pure function: also used standalone by the preview endpoint.
func RenderTemplate(template string, data model.Payload) string {
	data = expandNames(data)

	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		expr := rest[start+2 : start+end]
		b.WriteString(resolvePlaceholder(expr, data))
		rest = rest[start+end+2:]
	}
	return b.String()
}

func resolvePlaceholder(expr string, data model.Payload) string {
	for _, candidate := range strings.Split(expr, "|") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if len(candidate) >= 2 && strings.HasPrefix(candidate, `"`) && strings.HasSuffix(candidate, `"`) {
			return candidate[1 : len(candidate)-1]
		}
		if v := data.Get(strings.ToLower(candidate)); v != "" {
			return v
		}
	}
	return ""
}

// expandNames derives first_name/last_name from a full name when the explicit
// fields are absent. The stored payload is never mutated.
func expandNames(data model.Payload) model.Payload {
	full := strings.TrimSpace(data.Get(model.FieldName))
	if full == "" {
		return data
	}
	if data.Get(model.FieldFirstName) != "" && data.Get(model.FieldLastName) != "" {
		return data
	}

	out := data.Clone()
	parts := strings.Fields(full)
	if out.Get(model.FieldFirstName) == "" && len(parts) > 0 {
		out[model.FieldFirstName] = parts[0]
	}
	if out.Get(model.FieldLastName) == "" && len(parts) > 1 {
		out[model.FieldLastName] = strings.Join(parts[1:], " ")
	}
	return out
}
