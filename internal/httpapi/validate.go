package httpapi

import (
	"strconv"
	"unicode/utf8"
)

// FieldErrors maps a field name to the list of failed checks, in the shape
// clients already consume: {"username": ["required", "min:3"]}.
type FieldErrors map[string][]string

func (e FieldErrors) add(field, reason string) {
	e[field] = append(e[field], reason)
}

// Empty reports whether validation passed.
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// checkLength validates a string field. Length checks are skipped for absent
// optional fields.
func (e FieldErrors) checkLength(field, value string, required bool, min, max int) {
	if value == "" {
		if required {
			e.add(field, "required")
		}
		return
	}
	n := utf8.RuneCountInString(value)
	if min > 0 && n < min {
		e.add(field, "min:"+strconv.Itoa(min))
	}
	if max > 0 && n > max {
		e.add(field, "max:"+strconv.Itoa(max))
	}
}
