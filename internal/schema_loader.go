package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lychee-technology/sweet"
	"gopkg.in/yaml.v3"
)

// LoadSchema decodes a schema source into a mapping. Bytes are tried as
// YAML first and then as JSON. Paths are decoded strictly by extension.
func LoadSchema(src sweet.SchemaSource) (map[string]any, error) {
	switch src.Kind() {
	case sweet.SourceMapping:
		if src.Mapping() == nil {
			return nil, sweet.NewInputError(sweet.ErrCodeInvalidSource, "mapping source is nil")
		}
		return src.Mapping(), nil
	case sweet.SourceBytes:
		return loadBytes(src.Bytes())
	case sweet.SourcePath:
		return loadPath(src.Path())
	default:
		return nil, sweet.NewInputError(sweet.ErrCodeInvalidSource, "schema source has no content")
	}
}

func loadBytes(data []byte) (map[string]any, error) {
	if !utf8.Valid(data) {
		return nil, sweet.NewFormatError(sweet.ErrCodeInvalidFormat, "content is not valid UTF-8")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, sweet.NewFormatError(sweet.ErrCodeEmptyContent, "content is empty")
	}

	doc, yamlErr := decodeYAML(data)
	if yamlErr == nil {
		return doc, nil
	}
	doc, jsonErr := decodeJSON(data)
	if jsonErr == nil {
		return doc, nil
	}

	return nil, sweet.NewFormatError(sweet.ErrCodeInvalidFormat, "content is neither valid YAML nor JSON").
		WithDetail("yaml_error", yamlErr.Error()).
		WithDetail("json_error", jsonErr.Error())
}

func loadPath(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sweet.NewNotFoundError(sweet.ErrCodeFileNotFound, "schema file not found").
				WithDetail("path", path)
		}
		return nil, sweet.NewInternalError("stat schema file", err)
	}
	if info.IsDir() {
		return nil, sweet.NewInputError(sweet.ErrCodeInvalidSource, "schema path is a directory").
			WithDetail("path", path)
	}

	var decode func([]byte) (map[string]any, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decode = decodeJSON
	case ".yaml", ".yml":
		decode = decodeYAML
	default:
		return nil, sweet.NewFormatError(sweet.ErrCodeUnsupportedFormat, "unsupported schema file extension").
			WithDetail("path", path).
			WithDetail("extension", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sweet.NewInternalError("read schema file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, sweet.NewFormatError(sweet.ErrCodeEmptyContent, "schema file is empty").
			WithDetail("path", path)
	}

	doc, err := decode(data)
	if err != nil {
		return nil, sweet.NewFormatError(sweet.ErrCodeInvalidFormat, "invalid schema file content").
			WithDetail("path", path).
			WithCause(err)
	}
	return doc, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return asMapping(normalizeYAML(v))
}

func decodeJSON(data []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return asMapping(v)
}

func asMapping(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case nil:
		return nil, fmt.Errorf("document is empty")
	default:
		return nil, fmt.Errorf("top-level value is %T, expected a mapping", v)
	}
}

// normalizeYAML turns map[any]any nodes, which yaml.v3 produces for
// mappings with non-string keys, into map[string]any.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// CanonicalizeDocument returns the JSON-compatible form of doc: a deep copy
// after one JSON round trip, so numbers are float64 and keys are strings.
func CanonicalizeDocument(doc map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, sweet.NewFormatError(sweet.ErrCodeInvalidFormat, "document is not JSON compatible").WithCause(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, sweet.NewFormatError(sweet.ErrCodeInvalidFormat, "document is not JSON compatible").WithCause(err)
	}
	return out, nil
}
