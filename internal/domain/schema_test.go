package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemaArgs struct {
	LogID string `json:"logId" jsonschema:"required,minLength=1,description=Id of the log"`
	Limit int    `json:"limit,omitempty" jsonschema:"minimum=1"`
}

func TestGenerateSchema(t *testing.T) {
	s := GenerateSchema[schemaArgs]()
	require.NotNil(t, s)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []interface{}{"logId"}, doc["required"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.NotContains(t, doc, "$ref")
	assert.NotContains(t, doc, "$id")

	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "logId")
	assert.Contains(t, props, "limit")
}

func TestCompiledSchema_Validate(t *testing.T) {
	compiled, err := CompileSchema("schemaArgs", GenerateSchema[schemaArgs]())
	require.NoError(t, err)

	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{"valid map", map[string]interface{}{"logId": "L1"}, false},
		{"valid struct", schemaArgs{LogID: "L1", Limit: 5}, false},
		{"missing required", map[string]interface{}{}, true},
		{"empty required", map[string]interface{}{"logId": ""}, true},
		{"wrong type", map[string]interface{}{"logId": 42}, true},
		{"unknown property", map[string]interface{}{"logId": "L1", "extra": true}, true},
		{"below minimum", map[string]interface{}{"logId": "L1", "limit": 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compiled.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
