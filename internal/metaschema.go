package internal

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/lychee-technology/sweet"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	draft07SchemaURI       = "http://json-schema.org/draft-07/schema#"
	combinedMetaSchemaName = "Combined metadata schema"
	metaSchemaResource     = "metaschema.json"
)

//go:embed meta_schemas/table_schema.json
var tableSchemaMeta []byte

//go:embed meta_schemas/sweet_extension.yaml
var sweetExtensionMeta []byte

// DefaultBaseMetaSchema is the embedded Frictionless-style table schema profile.
func DefaultBaseMetaSchema() sweet.SchemaSource {
	return sweet.FromBytes(tableSchemaMeta)
}

// DefaultExtensionMetaSchemas is the embedded SWEET extension.
func DefaultExtensionMetaSchemas() []sweet.SchemaSource {
	return []sweet.SchemaSource{sweet.FromBytes(sweetExtensionMeta)}
}

// MetaSchema is a composed and compiled meta-schema. It is immutable and
// safe for concurrent use.
type MetaSchema struct {
	doc      map[string]any
	compiled *jsonschema.Schema
}

// NewMetaSchema composes base and extensions into one meta-schema. A nil
// base selects the embedded table schema profile. A nil extensions slice
// selects the SWEET extension; a non-nil empty slice selects none.
func NewMetaSchema(base *sweet.SchemaSource, extensions []sweet.SchemaSource) (*MetaSchema, error) {
	baseSrc := DefaultBaseMetaSchema()
	if base != nil {
		baseSrc = *base
	}
	if extensions == nil {
		extensions = DefaultExtensionMetaSchemas()
	}

	sources := make([]sweet.SchemaSource, 0, len(extensions)+1)
	sources = append(sources, baseSrc)
	sources = append(sources, extensions...)

	doc, err := ComposeMetaSchema(sources)
	if err != nil {
		return nil, err
	}

	compiled, err := compileMetaSchema(doc)
	if err != nil {
		return nil, err
	}

	return &MetaSchema{doc: doc, compiled: compiled}, nil
}

// ComposeMetaSchema loads every source and combines them so that a document
// must satisfy all of them. Sources keep their order as schema0..schemaN.
func ComposeMetaSchema(sources []sweet.SchemaSource) (map[string]any, error) {
	allOf := make([]any, 0, len(sources))
	definitions := make(map[string]any, len(sources))

	for i, src := range sources {
		loaded, err := LoadSchema(src)
		if err != nil {
			return nil, err
		}
		canonical, err := CanonicalizeDocument(loaded)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("schema%d", i)
		definitions[key] = canonical
		allOf = append(allOf, map[string]any{"$ref": "#/definitions/" + key})
	}

	return map[string]any{
		"$schema":     draft07SchemaURI,
		"title":       combinedMetaSchemaName,
		"allOf":       allOf,
		"definitions": definitions,
	}, nil
}

func compileMetaSchema(doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, sweet.NewInternalError("marshal meta-schema", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(metaSchemaResource, bytes.NewReader(raw)); err != nil {
		return nil, sweet.NewSweetError(sweet.ErrorTypeValidation, sweet.ErrCodeSchemaInvalid, "failed to add meta-schema resource").
			WithCause(err)
	}
	compiled, err := compiler.Compile(metaSchemaResource)
	if err != nil {
		return nil, sweet.NewSweetError(sweet.ErrorTypeValidation, sweet.ErrCodeSchemaInvalid, "failed to compile meta-schema").
			WithCause(err)
	}
	return compiled, nil
}

// Document returns a deep copy of the composed meta-schema document.
func (m *MetaSchema) Document() map[string]any {
	out, err := CanonicalizeDocument(m.doc)
	if err != nil {
		// doc was produced from canonical parts and always round trips
		panic(err)
	}
	return out
}

// MarshalJSON renders the composed document.
func (m *MetaSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.doc)
}

// Definitions returns the number of composed input schemas.
func (m *MetaSchema) Definitions() int {
	defs, _ := m.doc["definitions"].(map[string]any)
	return len(defs)
}

func (m *MetaSchema) validate(doc any) error {
	return m.compiled.Validate(doc)
}
