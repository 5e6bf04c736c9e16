package pagemodules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema(nil)
	require.NoError(t, err)
	assert.NoError(t, s.ValidateData("anything", 1))
	assert.NoError(t, s.ValidateAttributes(map[string]interface{}{"x": []int{1}}))

	_, err = ParseSchema(map[string]interface{}{
		"properties": map[string]interface{}{"title": map[string]interface{}{"type": 5}},
	})
	assert.Error(t, err)

	_, err = ParseSchema(map[string]interface{}{
		"properties": map[string]interface{}{"slug": map[string]interface{}{"type": "string", "pattern": "(["}},
	})
	assert.Error(t, err)

	_, err = schemaFor(&ModuleType{Name: "broken", Schema: map[string]interface{}{"$ref": "#/$defs/missing"}})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestModuleSchema_ValidateData(t *testing.T) {
	s, err := ParseSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title":   map[string]interface{}{"type": "string", "maxLength": 10},
			"columns": map[string]interface{}{"type": "integer"},
			"ratio":   map[string]interface{}{"type": "number"},
			"images":  map[string]interface{}{"type": "array"},
			"link":    map[string]interface{}{"type": "object"},
			"align":   map[string]interface{}{"type": "string", "enum": []interface{}{"left", "center"}},
			"extra":   map[string]interface{}{},
		},
		"required":             []interface{}{"title", "columns"},
		"additionalProperties": false,
	})
	require.NoError(t, err)

	tests := []struct {
		key   string
		value interface{}
		ok    bool
	}{
		{"title", "Welcome", true},
		{"title", 3, false},
		{"title", "A very long headline", false},
		{"columns", float64(3), true},
		{"columns", 3, true},
		{"columns", 2.5, false},
		{"ratio", 2.5, true},
		{"ratio", "wide", false},
		{"images", []interface{}{"a.png"}, true},
		{"images", map[string]interface{}{}, false},
		{"link", map[string]interface{}{"href": "/"}, true},
		{"link", nil, false},
		{"align", "left", true},
		{"align", "right", false},
		{"extra", nil, true},
		{"undeclared", "x", false},
	}
	for _, tt := range tests {
		err := s.ValidateData(tt.key, tt.value)
		if tt.ok {
			assert.NoError(t, err, "%s=%v", tt.key, tt.value)
		} else {
			assert.ErrorIs(t, err, ErrInvalidData, "%s=%v", tt.key, tt.value)
		}
	}
}

func TestModuleSchema_ValidateAttributes(t *testing.T) {
	open, err := ParseSchema(map[string]interface{}{
		"$defs": map[string]interface{}{
			"span": map[string]interface{}{"type": "integer", "enum": []interface{}{1, 2, 3}},
			"attributes": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"variant": map[string]interface{}{"type": "string", "enum": []interface{}{"light", "dark"}},
					"span":    map[string]interface{}{"$ref": "#/$defs/span"},
				},
			},
		},
	})
	require.NoError(t, err)

	assert.NoError(t, open.ValidateAttributes(map[string]interface{}{"variant": "dark", "span": float64(2), "free": true}))
	assert.NoError(t, open.ValidateAttributes(nil))
	assert.ErrorIs(t, open.ValidateAttributes(map[string]interface{}{"variant": "blue"}), ErrInvalidData)
	assert.ErrorIs(t, open.ValidateAttributes(map[string]interface{}{"span": 4}), ErrInvalidData)

	// The attributes definition does not constrain data
	assert.NoError(t, open.ValidateData("variant", 7))

	closed, err := ParseSchema(map[string]interface{}{
		"$defs": map[string]interface{}{
			"attributes": map[string]interface{}{
				"properties":           map[string]interface{}{"variant": map[string]interface{}{"type": "string"}},
				"required":             []interface{}{"variant"},
				"additionalProperties": false,
			},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, closed.ValidateAttributes(map[string]interface{}{"variant": "light"}))
	assert.ErrorIs(t, closed.ValidateAttributes(map[string]interface{}{"variant": "light", "free": true}), ErrInvalidData)
	assert.ErrorIs(t, closed.ValidateAttributes(map[string]interface{}{}), ErrInvalidData)
}

func TestNormalizeCSSClasses(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeCSSClasses(nil))
	assert.Equal(t, []string{"a", "b"}, NormalizeCSSClasses([]string{" a", "b ", "a", "  "}))
}
