package sweet

// SourceKind discriminates the variants of a SchemaSource.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceMapping
	SourceBytes
	SourcePath
)

func (k SourceKind) String() string {
	switch k {
	case SourceMapping:
		return "mapping"
	case SourceBytes:
		return "bytes"
	case SourcePath:
		return "path"
	default:
		return "unknown"
	}
}

// SchemaSource is a schema or meta-schema input: an already decoded
// mapping, raw bytes in JSON or YAML, or a file path.
type SchemaSource struct {
	kind    SourceKind
	mapping map[string]any
	data    []byte
	path    string
}

// FromMapping wraps an already decoded document.
func FromMapping(m map[string]any) SchemaSource {
	return SchemaSource{kind: SourceMapping, mapping: m}
}

// FromBytes wraps raw content whose format is detected on load.
func FromBytes(b []byte) SchemaSource {
	return SchemaSource{kind: SourceBytes, data: b}
}

// FromPath wraps a file path whose extension selects the format.
func FromPath(p string) SchemaSource {
	return SchemaSource{kind: SourcePath, path: p}
}

func (s SchemaSource) Kind() SourceKind       { return s.kind }
func (s SchemaSource) Mapping() map[string]any { return s.mapping }
func (s SchemaSource) Bytes() []byte           { return s.data }
func (s SchemaSource) Path() string            { return s.path }
