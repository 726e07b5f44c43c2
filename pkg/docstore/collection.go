package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Document is a schemaless record as stored in a collection.
type Document = map[string]any

// IDField is the store-assigned identifier field of every document.
const IDField = "_id"

// Collection exposes document primitives over one keyspace of the DB.
// Key layout follows <name>:doc:<id> for documents and
// <name>:idx:<field>:<value> for unique secondary indexes.
type Collection struct {
	db     *DB
	name   string
	unique []string
}

type CollectionOption func(*Collection)

// WithUnique declares a natural-key unique index on field. Writes that
// would duplicate an indexed value fail with ErrDuplicateKey.
func WithUnique(field string) CollectionOption {
	return func(c *Collection) {
		c.unique = append(c.unique, field)
	}
}

func (db *DB) Collection(name string, opts ...CollectionOption) *Collection {
	c := &Collection{db: db, name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) docKey(id string) []byte {
	return []byte(c.name + ":doc:" + id)
}

func (c *Collection) docPrefix() []byte {
	return []byte(c.name + ":doc:")
}

func (c *Collection) idxKey(field string, value any) []byte {
	return []byte(c.name + ":idx:" + field + ":" + indexValue(value))
}

func indexValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// InsertOne persists doc, assigning a fresh _id when the caller did not
// provide one, and returns the stored document. A primary-key or unique
// index collision fails with ErrDuplicateKey.
func (c *Collection) InsertOne(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := cloneDoc(doc)
	id, _ := stored[IDField].(string)
	if id == "" {
		id = uuid.NewString()
		stored[IDField] = id
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	err = c.db.badger.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(c.docKey(id)); err == nil {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrDuplicateKey)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing key: %w", err)
		}

		for _, field := range c.unique {
			val, ok := stored[field]
			if !ok || val == nil {
				continue
			}
			key := c.idxKey(field, val)
			if _, err := txn.Get(key); err == nil {
				return fmt.Errorf("%s %s=%v: %w", c.name, field, val, ErrDuplicateKey)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check index key: %w", err)
			}
			if err := txn.Set(key, []byte(id)); err != nil {
				return fmt.Errorf("set index key: %w", err)
			}
		}

		if err := txn.Set(c.docKey(id), data); err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByID returns the document with the given id, or ErrNotFound.
func (c *Collection) FindByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc Document
	err := c.db.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.docKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
			}
			return fmt.Errorf("get document: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindOne returns the first document matching filter, or ErrNotFound.
// A single-field equality filter on a unique index resolves through the
// index instead of scanning.
func (c *Collection) FindOne(ctx context.Context, filter Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(filter) == 1 {
		for _, field := range c.unique {
			val, ok := filter[field]
			if !ok {
				continue
			}
			id, err := c.idxLookup(field, val)
			if err != nil {
				return nil, err
			}
			return c.FindByID(ctx, id)
		}
	}

	docs, err := c.scan(filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s %v: %w", c.name, filter, ErrNotFound)
	}
	return docs[0], nil
}

func (c *Collection) idxLookup(field string, value any) (string, error) {
	var id string
	err := c.db.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.idxKey(field, value))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s %s=%v: %w", c.name, field, value, ErrNotFound)
			}
			return fmt.Errorf("get index key: %w", err)
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	return id, err
}

// Find returns every document matching filter, in key order. A nil or
// empty filter matches the whole collection.
func (c *Collection) Find(ctx context.Context, filter Document) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.scan(filter, 0)
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(ctx context.Context, filter Document) (int, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (c *Collection) scan(filter Document, limit int) ([]Document, error) {
	var out []Document
	err := c.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := c.docPrefix()
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc Document
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			})
			if err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
			if len(filter) > 0 && !matchDoc(doc, filter) {
				continue
			}
			out = append(out, doc)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateByID applies set onto the stored document in a single
// transaction and returns the updated document. Unique indexes are
// re-pointed when an indexed value changes.
func (c *Collection) UpdateByID(ctx context.Context, id string, set Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated Document
	err := c.db.badger.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(c.docKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
			}
			return fmt.Errorf("get document: %w", err)
		}

		var doc Document
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}

		for _, field := range c.unique {
			newVal, ok := set[field]
			if !ok {
				continue
			}
			oldVal, had := doc[field]
			if had && indexValue(oldVal) == indexValue(newVal) {
				continue
			}
			key := c.idxKey(field, newVal)
			if existing, err := txn.Get(key); err == nil {
				owner := ""
				_ = existing.Value(func(val []byte) error {
					owner = string(val)
					return nil
				})
				if owner != id {
					return fmt.Errorf("%s %s=%v: %w", c.name, field, newVal, ErrDuplicateKey)
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check index key: %w", err)
			}
			if had && oldVal != nil {
				if err := txn.Delete(c.idxKey(field, oldVal)); err != nil {
					return fmt.Errorf("delete index key: %w", err)
				}
			}
			if err := txn.Set(key, []byte(id)); err != nil {
				return fmt.Errorf("set index key: %w", err)
			}
		}

		for k, v := range set {
			doc[k] = v
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		if err := txn.Set(c.docKey(id), data); err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteByID removes the document and its index entries. It reports
// whether a document existed.
func (c *Collection) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	existed := false
	err := c.db.badger.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(c.docKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return fmt.Errorf("get document: %w", err)
		}

		var doc Document
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}

		for _, field := range c.unique {
			if val, ok := doc[field]; ok && val != nil {
				if err := txn.Delete(c.idxKey(field, val)); err != nil {
					return fmt.Errorf("delete index key: %w", err)
				}
			}
		}
		if err := txn.Delete(c.docKey(id)); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		existed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Aggregate runs a Mongo-style pipeline over the collection and returns
// the raw result documents.
func (c *Collection) Aggregate(ctx context.Context, pipeline []Document) ([]Document, error) {
	docs, err := c.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	return runPipeline(docs, pipeline)
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}
