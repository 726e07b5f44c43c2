package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"otakuhub/pkg/docstore"
)

// Relation declares a reference field: the stored value is one id (or a
// list of ids) pointing into the target collection, resolved to the full
// document(s) before persistence. Omit lists fields stripped from the
// embedded document, for data the referenced entity never exposes
// outside its own collection (a user's credential digest).
type Relation struct {
	Field  string
	Target string
	Many   bool
	Omit   []string
}

// Schema describes how one entity type maps onto its collection.
// Relations are declared statically here rather than discovered from the
// entity type at runtime.
type Schema struct {
	Collection string
	Unique     []string
	Relations  []Relation
	Timestamps bool
}

// Repository provides uniform CRUD and relation handling over one
// collection, independent of the concrete entity shape.
type Repository[T any] struct {
	db     *docstore.DB
	coll   *docstore.Collection
	schema Schema
}

func New[T any](db *docstore.DB, schema Schema) *Repository[T] {
	opts := make([]docstore.CollectionOption, 0, len(schema.Unique))
	for _, field := range schema.Unique {
		opts = append(opts, docstore.WithUnique(field))
	}
	return &Repository[T]{
		db:     db,
		coll:   db.Collection(schema.Collection, opts...),
		schema: schema,
	}
}

func (r *Repository[T]) Collection() string { return r.schema.Collection }

// ValidateID checks that id is well-formed for the store's id type.
func ValidateID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return nil
}

func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	docs, err := r.coll.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", r.schema.Collection, err)
	}
	return decodeAll[T](docs)
}

// GetByID returns nil without error when no entity has the given id.
func (r *Repository[T]) GetByID(ctx context.Context, id string) (*T, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	doc, err := r.coll.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s by id: %w", r.schema.Collection, err)
	}
	return decode[T](doc)
}

// FindByField returns the first entity with field == value, or nil. The
// identifier field goes through the same well-formedness check as
// GetByID.
func (r *Repository[T]) FindByField(ctx context.Context, field string, value any) (*T, error) {
	if field == docstore.IDField {
		id, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%v: %w", value, ErrInvalidID)
		}
		return r.GetByID(ctx, id)
	}
	doc, err := r.coll.FindOne(ctx, docstore.Document{field: value})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s by %s: %w", r.schema.Collection, field, err)
	}
	return decode[T](doc)
}

// Find returns every entity matching the filter. Filtering on the
// identifier field is rejected; use GetByID or FindByField for that.
func (r *Repository[T]) Find(ctx context.Context, filter map[string]any) ([]T, error) {
	if _, ok := filter[docstore.IDField]; ok {
		return nil, fmt.Errorf("filter must not contain %s: %w", docstore.IDField, ErrInvalidArgument)
	}
	docs, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.schema.Collection, err)
	}
	return decodeAll[T](docs)
}

// Create persists a new entity. The payload must not carry the
// identifier key; the store assigns one. Natural-key conflicts fail with
// ErrAlreadyExists whether detected by the pre-check or by the store's
// duplicate-key signal.
func (r *Repository[T]) Create(ctx context.Context, fields map[string]any) (*T, error) {
	if _, ok := fields[docstore.IDField]; ok {
		return nil, fmt.Errorf("payload must not contain %s: %w", docstore.IDField, ErrInvalidArgument)
	}

	doc := copyFields(fields)
	if err := r.resolveRelations(ctx, doc); err != nil {
		return nil, err
	}

	for _, field := range r.schema.Unique {
		val, ok := doc[field]
		if !ok || val == nil {
			continue
		}
		existing, err := r.coll.FindOne(ctx, docstore.Document{field: val})
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("create %s: %w", r.schema.Collection, err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%s with %s=%v: %w", r.schema.Collection, field, val, ErrAlreadyExists)
		}
	}

	if r.schema.Timestamps {
		doc["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	stored, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return nil, fmt.Errorf("create %s: %w", r.schema.Collection, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create %s: %w", r.schema.Collection, err)
	}
	return decode[T](stored)
}

// Update applies each field onto the stored entity. The identifier is
// immutable: a payload carrying it fails before anything is written.
// Returns nil when no entity has the given id.
func (r *Repository[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if _, ok := fields[docstore.IDField]; ok {
		return nil, fmt.Errorf("payload must not contain %s: %w", docstore.IDField, ErrInvalidArgument)
	}

	set := copyFields(fields)
	if err := r.resolveRelations(ctx, set); err != nil {
		return nil, err
	}
	if r.schema.Timestamps {
		set["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	updated, err := r.coll.UpdateByID(ctx, id, set)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return nil, fmt.Errorf("update %s: %w", r.schema.Collection, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("update %s: %w", r.schema.Collection, err)
	}
	return decode[T](updated)
}

// Delete reports whether an entity existed and was removed. A missing
// entity is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	existed, err := r.coll.DeleteByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", r.schema.Collection, err)
	}
	return existed, nil
}

// Exists swallows the malformed-id case and reports false instead of
// propagating ErrInvalidID.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, nil
	}
	_, err := r.coll.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("exists %s: %w", r.schema.Collection, err)
	}
	return true, nil
}

// Aggregate runs the pipeline against the collection and returns raw
// result documents. Direct identifier injection in a $match filter is
// rejected; arbitrary pipeline content is otherwise passed through.
func (r *Repository[T]) Aggregate(ctx context.Context, pipeline []docstore.Document) ([]docstore.Document, error) {
	for _, stage := range pipeline {
		if match, ok := stage["$match"].(map[string]any); ok {
			if _, ok := match[docstore.IDField]; ok {
				return nil, fmt.Errorf("$match must not filter on %s: %w", docstore.IDField, ErrInvalidArgument)
			}
		}
	}
	out, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", r.schema.Collection, err)
	}
	return out, nil
}

// resolveRelations replaces declared reference ids with the referenced
// documents. Resolution happens before the primary write, so a missing
// reference aborts the whole operation with nothing persisted.
func (r *Repository[T]) resolveRelations(ctx context.Context, doc docstore.Document) error {
	for _, rel := range r.schema.Relations {
		raw, ok := doc[rel.Field]
		if !ok || raw == nil {
			continue
		}
		target := r.db.Collection(rel.Target)

		if rel.Many {
			ids, err := relationIDs(raw)
			if err != nil {
				return fmt.Errorf("relation %s: %w", rel.Field, err)
			}
			resolved := make([]any, 0, len(ids))
			for _, id := range ids {
				related, err := target.FindByID(ctx, id)
				if err != nil {
					if errors.Is(err, docstore.ErrNotFound) {
						return fmt.Errorf("relation %s: %s %q: %w", rel.Field, rel.Target, id, ErrNotFound)
					}
					return fmt.Errorf("relation %s: %w", rel.Field, err)
				}
				stripFields(related, rel.Omit)
				resolved = append(resolved, related)
			}
			doc[rel.Field] = resolved
			continue
		}

		id, ok := raw.(string)
		if !ok {
			return fmt.Errorf("relation %s: expected an id string: %w", rel.Field, ErrInvalidArgument)
		}
		related, err := target.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("relation %s: %s %q: %w", rel.Field, rel.Target, id, ErrNotFound)
			}
			return fmt.Errorf("relation %s: %w", rel.Field, err)
		}
		stripFields(related, rel.Omit)
		doc[rel.Field] = related
	}
	return nil
}

func stripFields(doc docstore.Document, fields []string) {
	for _, field := range fields {
		delete(doc, field)
	}
}

func relationIDs(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected id strings: %w", ErrInvalidArgument)
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("expected a list of ids: %w", ErrInvalidArgument)
	}
}

func copyFields(fields map[string]any) docstore.Document {
	out := make(docstore.Document, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func decode[T any](doc docstore.Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return &entity, nil
}

func decodeAll[T any](docs []docstore.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *entity)
	}
	return out, nil
}
