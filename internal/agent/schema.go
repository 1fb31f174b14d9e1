package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Property types understood by Schema.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// FormatUUID requires a string property to parse as a UUID.
const FormatUUID = "uuid"

// Property describes one argument of a tool.
type Property struct {
	Type        string
	Format      string
	Description string
}

// Schema is the flat object schema tools declare. Unknown fields are rejected.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// Validate checks a JSON payload: it must be an object, carry every
// required property, contain no undeclared property, and match declared types.
func (s Schema) Validate(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("payload must be a JSON object: %v", err)
	}
	if obj == nil {
		return fmt.Errorf("payload must be a JSON object")
	}

	var unknown []string
	for k := range obj {
		if _, ok := s.Properties[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown field(s): %s", strings.Join(unknown, ", "))
	}

	for _, name := range s.Required {
		v, ok := obj[name]
		if !ok || v == nil {
			return fmt.Errorf("missing required field %q", name)
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			return fmt.Errorf("required field %q is empty", name)
		}
	}

	for name, v := range obj {
		if err := s.Properties[name].check(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (p Property) check(name string, v any) error {
	if v == nil {
		return nil
	}
	switch p.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", name)
		}
		if p.Format == FormatUUID {
			if _, err := uuid.Parse(str); err != nil {
				return fmt.Errorf("field %q must be a UUID", name)
			}
		}
	case TypeNumber:
		if _, ok := v.(json.Number); !ok {
			return fmt.Errorf("field %q must be a number", name)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", name)
		}
	}
	return nil
}
