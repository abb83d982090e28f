package repository

import (
	"fmt"
	"strings"
)

// pqStringArray scans a PostgreSQL text[] column. The seeded permission
// names contain no quotes or commas, so the simple brace format suffices.
type pqStringArray []string

func (a *pqStringArray) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*a = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into string array", src)
	}

	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		*a = nil
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.Trim(p, `"`)
	}
	*a = out
	return nil
}
