package sweet

import "context"

// SchemaManager validates, stores and materializes table schemas.
type SchemaManager interface {
	// CreateSchema validates raw JSON or YAML and stores it as an inactive record.
	CreateSchema(ctx context.Context, raw []byte) (*SchemaRecord, error)
	ReadSchema(ctx context.Context, sel SchemaSelector) (*SchemaRecord, error)
	ListSchemas(ctx context.Context) ([]SchemaRecord, error)

	// DeleteSchema, ToggleSchema and ActivateSchema report false instead of
	// failing when the record is missing. They return an error only for an
	// invalid selector.
	DeleteSchema(ctx context.Context, sel SchemaSelector) (bool, error)
	ToggleSchema(ctx context.Context, sel SchemaSelector) (bool, error)
	ActivateSchema(ctx context.Context, sel SchemaSelector) (bool, error)

	ValidateSchema(ctx context.Context, src SchemaSource) (map[string]any, error)
	BuildTableModel(ctx context.Context, src SchemaSource, opts MaterializeOptions) (*TableModel, error)

	// CreateTableFromSchema creates the physical table for a stored schema.
	CreateTableFromSchema(ctx context.Context, sel SchemaSelector, opts MaterializeOptions) (*TableModel, error)
	// CreateTablesFromSchemas creates several tables in dependency order in
	// one transaction.
	CreateTablesFromSchemas(ctx context.Context, sels []SchemaSelector, opts MaterializeOptions) ([]TableModel, error)
}
