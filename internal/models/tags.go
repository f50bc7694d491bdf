package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// TagList is an ordered set of tags persisted as a JSON array. Order of first
// appearance is preserved and duplicates are dropped.
type TagList []string

func NewTagList(values []string) TagList {
	seen := make(map[string]bool, len(values))
	tags := make(TagList, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		tags = append(tags, v)
	}
	return tags
}

// ParseTagList accepts either a JSON array or a comma separated list.
func ParseTagList(raw string) (TagList, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TagList{}, nil
	}
	if strings.HasPrefix(raw, "[") {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("invalid tag list: %w", err)
		}
		for i := range values {
			values[i] = strings.TrimSpace(values[i])
		}
		return NewTagList(values), nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return NewTagList(parts), nil
}

func (t TagList) String() string {
	if t == nil {
		return "[]"
	}
	data, _ := json.Marshal([]string(t))
	return string(data)
}

func (t TagList) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TagList) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*t = TagList{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("unsupported tag list type %T", value)
	}
	parsed, err := ParseTagList(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
