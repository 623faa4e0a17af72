package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	apperrors "payledger/internal/errors"
)

// ProviderMetadata carries provider specific request attributes.
type ProviderMetadata map[string]string

// Value implements the driver.Valuer interface
func (m ProviderMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface
func (m *ProviderMetadata) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	return json.Unmarshal(data, m)
}

// UnmarshalJSON sets the JSON encoding
func (m *ProviderMetadata) UnmarshalJSON(data []byte) error {
	if m == nil {
		return errors.New("nil pointer")
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = raw
	return nil
}

// MetadataSchema documents the keys a provider accepts.
type MetadataSchema struct {
	// Allowed lists every accepted key.
	Allowed []string
	// Required lists keys that must be set for a given payment method.
	Required map[PaymentMethod][]string
	// Values restricts a key to an enumerated set.
	Values map[string][]string
}

// Validate checks m against the schema for method.
func (s MetadataSchema) Validate(method PaymentMethod, m ProviderMetadata) error {
	allowed := make(map[string]struct{}, len(s.Allowed))
	for _, k := range s.Allowed {
		allowed[k] = struct{}{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := allowed[k]; !ok {
			return apperrors.Wrap(apperrors.ErrValidation, "metadata key %q is not accepted", k)
		}
		if values, ok := s.Values[k]; ok && !contains(values, m[k]) {
			return apperrors.Wrap(apperrors.ErrValidation, "metadata %s=%q is not one of %v", k, m[k], values)
		}
	}
	for _, k := range s.Required[method] {
		if m[k] == "" {
			return apperrors.Wrap(apperrors.ErrValidation, "metadata key %q is required for %s", k, method)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
