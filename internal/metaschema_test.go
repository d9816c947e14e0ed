package internal

import (
	"encoding/json"
	"testing"

	"github.com/lychee-technology/sweet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeMetaSchema_Layout(t *testing.T) {
	base := sweet.FromMapping(map[string]any{"type": "object"})
	ext := sweet.FromBytes([]byte("required: [name]\n"))

	doc, err := ComposeMetaSchema([]sweet.SchemaSource{base, ext})
	require.NoError(t, err)

	assert.Equal(t, draft07SchemaURI, doc["$schema"])
	assert.Equal(t, combinedMetaSchemaName, doc["title"])
	assert.Equal(t, []any{
		map[string]any{"$ref": "#/definitions/schema0"},
		map[string]any{"$ref": "#/definitions/schema1"},
	}, doc["allOf"])
	defs := doc["definitions"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "object"}, defs["schema0"])
	assert.Equal(t, map[string]any{"required": []any{"name"}}, defs["schema1"])
}

func TestNewMetaSchema_Defaults(t *testing.T) {
	meta, err := NewMetaSchema(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Definitions())

	baseOnly, err := NewMetaSchema(nil, []sweet.SchemaSource{})
	require.NoError(t, err)
	assert.Equal(t, 1, baseOnly.Definitions())

	// the base alone accepts keys the extension rejects
	doc := map[string]any{"fields": []any{map[string]any{"name": "Id", "rdfType": "x"}}}
	assert.NoError(t, baseOnly.validate(doc))
	assert.Error(t, meta.validate(doc))
}

func TestMetaSchema_DocumentIsCopy(t *testing.T) {
	meta, err := NewMetaSchema(nil, nil)
	require.NoError(t, err)

	doc := meta.Document()
	doc["title"] = "changed"
	assert.Equal(t, combinedMetaSchemaName, meta.Document()["title"])

	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, meta.Document(), decoded)
}

func TestNewMetaSchema_Errors(t *testing.T) {
	bad := sweet.FromMapping(map[string]any{"type": 12})
	_, err := NewMetaSchema(&bad, []sweet.SchemaSource{})
	requireSweetError(t, err, sweet.ErrorTypeValidation, sweet.ErrCodeSchemaInvalid)

	missing := sweet.FromPath("/does/not/exist.yaml")
	_, err = NewMetaSchema(&missing, nil)
	requireSweetError(t, err, sweet.ErrorTypeNotFound, sweet.ErrCodeFileNotFound)
}
