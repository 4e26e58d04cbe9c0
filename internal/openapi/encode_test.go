package openapi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestMarshalDocument(t *testing.T) {
	doc := ApplyBearerScheme(buildSampleDoc(t), []string{"Bearer"})

	data, err := MarshalDocument(doc)
	require.NoError(t, err)
	body := string(data)

	plain, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(plain), body)

	assert.True(t, strings.HasPrefix(body, `{"openapi":"3.0.3","info":`), body)
	assert.Less(t, strings.Index(body, `"paths":`), strings.Index(body, `"components":`))
	assert.Less(t, strings.Index(body, `"/api/v2/users":`), strings.Index(body, `"/api/v2/users/{id}":`))
	assert.Less(t, strings.Index(body, `"/api/v2/users/{id}":`), strings.Index(body, `"/health":`))
	assert.Less(t, strings.Index(body, `"operationId":"getUser"`), strings.Index(body, `"operationId":"deleteUser"`))
	assert.Contains(t, body, `"security":[{"Bearer":[]}]`)
}

func TestMarshalDocument_Stable(t *testing.T) {
	first, err := MarshalDocument(buildSampleDoc(t))
	require.NoError(t, err)
	second, err := MarshalDocument(buildSampleDoc(t))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDocumentYAML(t *testing.T) {
	data, err := MarshalDocument(buildSampleDoc(t))
	require.NoError(t, err)

	out, err := DocumentYAML(data)
	require.NoError(t, err)
	body := string(out)

	assert.True(t, strings.HasPrefix(body, "openapi: 3.0.3\ninfo:\n"), body)
	assert.Less(t, strings.Index(body, "operationId: getUser"), strings.Index(body, "operationId: deleteUser"))
	// status codes stay strings
	assert.Contains(t, body, `"200":`)

	back, err := yaml.YAMLToJSON(out)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(back))
}

func TestDocumentYAML_Errors(t *testing.T) {
	for _, input := range []string{``, `[1,2]`, `{"openapi":`} {
		_, err := DocumentYAML([]byte(input))
		assert.Error(t, err, input)
	}
}
