package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/internal/filestorage"
	"go.uber.org/zap"
)

const defaultArchivePrefix = "schemas/"

type schemaManager struct {
	validator     *SchemaValidator
	store         SchemaStore
	archive       filestorage.Storage
	archivePrefix string
}

// NewSchemaManager creates a SchemaManager over store. archive may be nil
// to skip archiving raw uploads. config may be nil.
func NewSchemaManager(
	validator *SchemaValidator,
	store SchemaStore,
	archive filestorage.Storage,
	config *sweet.Config,
) sweet.SchemaManager {
	prefix := defaultArchivePrefix
	if config != nil && config.Storage.Prefix != "" {
		prefix = config.Storage.Prefix
	}
	return &schemaManager{
		validator:     validator,
		store:         store,
		archive:       archive,
		archivePrefix: prefix,
	}
}

func (m *schemaManager) archiveKey(name string) string {
	return m.archivePrefix + name
}

func observe(ctx context.Context, operation string, start time.Time, applied bool, err error) {
	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeError
		if se, ok := sweet.AsSweetError(err); ok {
			outcome = string(se.Type)
		}
	case !applied:
		outcome = outcomeNotApplied
	}
	EmitOperation(ctx, operation, outcome, time.Since(start))
}

// txError keeps SweetErrors raised inside a transaction and marks plumbing
// failures as transaction errors.
func txError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := sweet.AsSweetError(err); ok {
		return err
	}
	return sweet.NewTransactionError(message, err)
}

func getRecord(ctx context.Context, tx StoreTx, sel sweet.SchemaSelector) (*sweet.SchemaRecord, error) {
	rec, err := tx.GetSchema(ctx, sel)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, sweet.NewNotFoundError(sweet.ErrCodeSchemaNotFound, "schema not found").
			WithDetail("selector", sel.String())
	}
	return rec, err
}

func (m *schemaManager) CreateSchema(ctx context.Context, raw []byte) (rec *sweet.SchemaRecord, err error) {
	start := time.Now()
	defer func() { observe(ctx, "create_schema", start, true, err) }()

	canonical, err := m.validator.Validate(sweet.FromBytes(raw))
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(canonical)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		return nil, sweet.NewValidationError("name", "schema has no name")
	}

	rec = &sweet.SchemaRecord{
		Name:        doc.Name,
		Description: doc.Description,
		JSONSchema:  canonical,
		IsActive:    false,
	}

	archived := false
	err = m.store.WithTx(ctx, func(tx StoreTx) error {
		if err := tx.InsertSchema(ctx, rec); err != nil {
			if errors.Is(err, ErrUniqueViolation) {
				return sweet.NewConflictError(sweet.ErrCodeSchemaAlreadyExists, "could not insert schema").
					WithField("name").
					WithDetail("name", rec.Name).
					WithCause(err)
			}
			return err
		}
		if m.archive != nil {
			if _, err := m.archive.Save(ctx, m.archiveKey(rec.Name), raw); err != nil {
				return sweet.NewInternalError("could not archive schema upload", err)
			}
			archived = true
		}
		return nil
	})
	if err != nil {
		if archived {
			if _, derr := m.archive.Delete(ctx, m.archiveKey(rec.Name)); derr != nil {
				zap.S().Warnw("could not remove orphaned schema upload", "name", rec.Name, "error", derr)
			}
		}
		zap.S().Warnw("create schema failed", "name", rec.Name, "error", err)
		return nil, txError(err, "could not insert schema")
	}

	zap.S().Infow("schema created", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

func (m *schemaManager) ReadSchema(ctx context.Context, sel sweet.SchemaSelector) (rec *sweet.SchemaRecord, err error) {
	start := time.Now()
	defer func() { observe(ctx, "read_schema", start, true, err) }()

	if err := sel.Validate(); err != nil {
		return nil, err
	}
	err = m.store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		rec, err = getRecord(ctx, tx, sel)
		return err
	})
	if err != nil {
		return nil, txError(err, "could not read schema")
	}
	return rec, nil
}

func (m *schemaManager) ListSchemas(ctx context.Context) (out []sweet.SchemaRecord, err error) {
	start := time.Now()
	defer func() { observe(ctx, "list_schemas", start, true, err) }()

	err = m.store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		out, err = tx.ListSchemas(ctx)
		return err
	})
	if err != nil {
		return nil, txError(err, "could not list schemas")
	}
	if out == nil {
		out = []sweet.SchemaRecord{}
	}
	return out, nil
}

func (m *schemaManager) DeleteSchema(ctx context.Context, sel sweet.SchemaSelector) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	start := time.Now()

	var name string
	var deleted bool
	err := m.store.WithTx(ctx, func(tx StoreTx) error {
		rec, err := getRecord(ctx, tx, sel)
		if err != nil {
			return err
		}
		name = rec.Name
		deleted, err = tx.DeleteSchema(ctx, rec.ID)
		return err
	})
	observe(ctx, "delete_schema", start, deleted, err)
	if err != nil {
		logUnapplied("delete schema", sel, err)
		return false, nil
	}

	if deleted && m.archive != nil {
		if _, err := m.archive.Delete(ctx, m.archiveKey(name)); err != nil {
			zap.S().Warnw("delete schema: archived upload not removed", "name", name, "error", err)
		}
	}
	if deleted {
		zap.S().Infow("schema deleted", "name", name)
	}
	return deleted, nil
}

func (m *schemaManager) ToggleSchema(ctx context.Context, sel sweet.SchemaSelector) (bool, error) {
	return m.setActive(ctx, "toggle_schema", sel, func(current bool) bool { return !current })
}

func (m *schemaManager) ActivateSchema(ctx context.Context, sel sweet.SchemaSelector) (bool, error) {
	return m.setActive(ctx, "activate_schema", sel, func(bool) bool { return true })
}

func (m *schemaManager) setActive(ctx context.Context, operation string, sel sweet.SchemaSelector, next func(current bool) bool) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	start := time.Now()

	var updated bool
	var active bool
	err := m.store.WithTx(ctx, func(tx StoreTx) error {
		rec, err := getRecord(ctx, tx, sel)
		if err != nil {
			return err
		}
		active = next(rec.IsActive)
		updated, err = tx.SetSchemaActive(ctx, rec.ID, active)
		return err
	})
	observe(ctx, operation, start, updated, err)
	if err != nil {
		logUnapplied(operation, sel, err)
		return false, nil
	}
	if updated {
		zap.S().Infow("schema activation changed", "selector", sel.String(), "is_active", active)
	}
	return updated, nil
}

// logUnapplied records why a delete/toggle/activate reported false.
func logUnapplied(operation string, sel sweet.SchemaSelector, err error) {
	if sweet.IsErrorType(err, sweet.ErrorTypeNotFound) {
		zap.S().Infow(operation+": schema not found", "selector", sel.String())
		return
	}
	zap.S().Errorw(operation+" failed; transaction rolled back", "selector", sel.String(), "error", err)
}

func (m *schemaManager) ValidateSchema(ctx context.Context, src sweet.SchemaSource) (doc map[string]any, err error) {
	start := time.Now()
	defer func() { observe(ctx, "validate_schema", start, true, err) }()
	return m.validator.Validate(src)
}

func (m *schemaManager) BuildTableModel(ctx context.Context, src sweet.SchemaSource, opts sweet.MaterializeOptions) (model *sweet.TableModel, err error) {
	start := time.Now()
	defer func() { observe(ctx, "build_table_model", start, true, err) }()

	dialect := opts.Dialect
	if dialect == "" {
		if m.store == nil {
			return nil, sweet.NewInputError(sweet.ErrCodeUnsupportedDialect, "a dialect is required without a database")
		}
		dialect = m.store.Dialect()
	}
	if dialect, err = sweet.ParseDialect(string(dialect)); err != nil {
		return nil, err
	}

	canonical, err := m.validator.Validate(src)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(canonical)
	if err != nil {
		return nil, err
	}
	return BuildTableModel(doc, dialect, opts.IDColumn)
}

// materializeDialect resolves the dialect DDL is emitted for. It must be
// the dialect of the connected database.
func (m *schemaManager) materializeDialect(opts sweet.MaterializeOptions) (sweet.Dialect, error) {
	storeDialect := m.store.Dialect()
	if opts.Dialect == "" {
		return storeDialect, nil
	}
	d, err := sweet.ParseDialect(string(opts.Dialect))
	if err != nil {
		return "", err
	}
	if d != storeDialect {
		return "", sweet.NewInputError(sweet.ErrCodeDialectMismatch,
			fmt.Sprintf("requested dialect %s does not match the database dialect %s", d, storeDialect)).
			WithDetail("requested", string(d)).
			WithDetail("database", string(storeDialect))
	}
	return d, nil
}

func modelFromRecord(rec *sweet.SchemaRecord, dialect sweet.Dialect, idColumn string) (*sweet.TableModel, error) {
	doc, err := DecodeDocument(rec.JSONSchema)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = rec.Name
	}
	return BuildTableModel(doc, dialect, idColumn)
}

func catalogSet(ctx context.Context, tx StoreTx) (map[string]bool, error) {
	names, err := tx.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

func tableExistsError(name string) *sweet.SweetError {
	return sweet.NewConflictError(sweet.ErrCodeTableAlreadyExists, "table already exists").
		WithDetail("table", name)
}

// checkReferences verifies every foreign key target of model. Targets are
// looked up in the model itself, then in batch, then in the live catalog.
func checkReferences(ctx context.Context, tx StoreTx, model *sweet.TableModel, catalog map[string]bool, batch map[string]*sweet.TableModel) error {
	for _, fk := range model.ForeignKeys() {
		var columns []string
		switch target, inBatch := batch[fk.RefTable]; {
		case fk.RefTable == model.Name:
			columns = model.ColumnNames()
		case inBatch:
			columns = target.ColumnNames()
		case catalog[fk.RefTable]:
			cols, err := tx.TableColumns(ctx, fk.RefTable)
			if err != nil {
				return err
			}
			columns = cols
		default:
			return sweet.NewReferenceError(sweet.ErrCodeReferenceNotFound, fk.Name, "referenced table does not exist").
				WithDetail("table", model.Name).
				WithDetail("reference", fk.RefTable)
		}

		known := make(map[string]bool, len(columns))
		for _, c := range columns {
			known[c] = true
		}
		for _, ref := range fk.References() {
			col := ref[len(fk.RefTable)+1:]
			if !known[col] {
				return sweet.NewReferenceError(sweet.ErrCodeReferenceNotFound, fk.Name, "referenced column does not exist").
					WithDetail("table", model.Name).
					WithDetail("reference", ref)
			}
		}
	}
	return nil
}

func execStatements(ctx context.Context, tx StoreTx, table string, stmts []string) error {
	for _, stmt := range stmts {
		if err := tx.Exec(ctx, stmt); err != nil {
			// a concurrent CREATE can also lose on pg_type's unique index
			if errors.Is(err, ErrDuplicateTable) || errors.Is(err, ErrUniqueViolation) {
				return tableExistsError(table).WithCause(err)
			}
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

func (m *schemaManager) CreateTableFromSchema(ctx context.Context, sel sweet.SchemaSelector, opts sweet.MaterializeOptions) (model *sweet.TableModel, err error) {
	start := time.Now()
	defer func() { observe(ctx, "create_table", start, true, err) }()

	if err := sel.Validate(); err != nil {
		return nil, err
	}
	dialect, err := m.materializeDialect(opts)
	if err != nil {
		return nil, err
	}

	err = m.store.WithTx(ctx, func(tx StoreTx) error {
		rec, err := getRecord(ctx, tx, sel)
		if err != nil {
			return err
		}
		model, err = modelFromRecord(rec, dialect, opts.IDColumn)
		if err != nil {
			return err
		}

		catalog, err := catalogSet(ctx, tx)
		if err != nil {
			return err
		}
		if catalog[model.Name] {
			return tableExistsError(model.Name)
		}
		if err := checkReferences(ctx, tx, model, catalog, nil); err != nil {
			return err
		}

		stmts, err := RenderCreateTable(model, dialect, nil)
		if err != nil {
			return err
		}
		return execStatements(ctx, tx, model.Name, stmts)
	})
	if err != nil {
		zap.S().Warnw("create table failed", "selector", sel.String(), "error", err)
		return nil, txError(err, "could not create table")
	}

	zap.S().Infow("table created", "table", model.Name, "dialect", dialect)
	return model, nil
}

type deferredForeignKey struct {
	table string
	fk    sweet.ConstraintSpec
}

func (m *schemaManager) CreateTablesFromSchemas(ctx context.Context, sels []sweet.SchemaSelector, opts sweet.MaterializeOptions) (out []sweet.TableModel, err error) {
	start := time.Now()
	defer func() { observe(ctx, "create_tables", start, true, err) }()

	for _, sel := range sels {
		if err := sel.Validate(); err != nil {
			return nil, err
		}
	}
	dialect, err := m.materializeDialect(opts)
	if err != nil {
		return nil, err
	}
	caps, err := CapabilitiesOf(dialect)
	if err != nil {
		return nil, err
	}

	err = m.store.WithTx(ctx, func(tx StoreTx) error {
		models := make([]*sweet.TableModel, 0, len(sels))
		batch := make(map[string]*sweet.TableModel, len(sels))
		for _, sel := range sels {
			rec, err := getRecord(ctx, tx, sel)
			if err != nil {
				return err
			}
			model, err := modelFromRecord(rec, dialect, opts.IDColumn)
			if err != nil {
				return err
			}
			if _, dup := batch[model.Name]; dup {
				return sweet.NewInputError(sweet.ErrCodeDuplicateInBatch, "schema listed more than once").
					WithDetail("table", model.Name)
			}
			batch[model.Name] = model
			models = append(models, model)
		}

		catalog, err := catalogSet(ctx, tx)
		if err != nil {
			return err
		}
		for _, model := range models {
			if catalog[model.Name] {
				return tableExistsError(model.Name)
			}
			if err := checkReferences(ctx, tx, model, catalog, batch); err != nil {
				return err
			}
		}

		order := creationOrder(models)
		position := make(map[string]int, len(order))
		for p, idx := range order {
			position[models[idx].Name] = p
		}

		deferred := make(map[string]bool)
		var alters []deferredForeignKey
		for _, idx := range order {
			model := models[idx]
			for _, fk := range model.ForeignKeys() {
				p, inBatch := position[fk.RefTable]
				if !inBatch || fk.RefTable == model.Name || p < position[model.Name] {
					continue
				}
				switch {
				case caps.InlineForwardReferences:
				case caps.AlterAddForeignKey:
					deferred[model.Name+"/"+fk.Name] = true
					alters = append(alters, deferredForeignKey{table: model.Name, fk: fk})
				default:
					return sweet.NewReferenceError(sweet.ErrCodeCircularReference, fk.Name,
						fmt.Sprintf("dialect %s cannot create tables that reference each other", dialect)).
						WithDetail("table", model.Name).
						WithDetail("reference", fk.RefTable)
				}
			}
		}

		out = make([]sweet.TableModel, 0, len(order))
		for _, idx := range order {
			model := models[idx]
			stmts, err := RenderCreateTable(model, dialect, func(c sweet.ConstraintSpec) bool {
				return deferred[model.Name+"/"+c.Name]
			})
			if err != nil {
				return err
			}
			if err := execStatements(ctx, tx, model.Name, stmts); err != nil {
				return err
			}
			out = append(out, *model)
		}

		for _, a := range alters {
			stmt, err := RenderAddForeignKey(a.table, a.fk, dialect)
			if err != nil {
				return err
			}
			if err := tx.Exec(ctx, stmt); err != nil {
				if errors.Is(err, ErrDuplicateTable) || errors.Is(err, ErrUniqueViolation) {
					return sweet.NewConflictError(sweet.ErrCodeTableAlreadyExists, "foreign key already exists").
						WithDetail("table", a.table).
						WithDetail("constraint", a.fk.Name).
						WithCause(err)
				}
				return fmt.Errorf("add foreign key %s: %w", a.fk.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		zap.S().Warnw("create tables failed", "count", len(sels), "error", err)
		return nil, txError(err, "could not create tables")
	}

	zap.S().Infow("tables created", "count", len(out), "dialect", dialect)
	return out, nil
}

// creationOrder sorts models so that referenced tables come first (Kahn's
// algorithm). Self references are ignored and ties keep the input order.
// Models in a cycle are emitted in input order once nothing else is ready.
func creationOrder(models []*sweet.TableModel) []int {
	index := make(map[string]int, len(models))
	for i, m := range models {
		index[m.Name] = i
	}
	deps := make([]map[int]bool, len(models))
	for i, m := range models {
		deps[i] = make(map[int]bool)
		for _, fk := range m.ForeignKeys() {
			if j, ok := index[fk.RefTable]; ok && j != i {
				deps[i][j] = true
			}
		}
	}

	done := make([]bool, len(models))
	order := make([]int, 0, len(models))
	ready := func(i int) bool {
		for j := range deps[i] {
			if !done[j] {
				return false
			}
		}
		return true
	}

	for len(order) < len(models) {
		next := -1
		for i := range models {
			if !done[i] && ready(i) {
				next = i
				break
			}
		}
		if next < 0 {
			for i := range models {
				if !done[i] {
					next = i
					break
				}
			}
		}
		done[next] = true
		order = append(order, next)
	}
	return order
}
