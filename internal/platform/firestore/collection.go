package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	"github.com/printhouse/orders-api/internal/repositories"
)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed document access that joins the transaction carried
// by ctx when there is one.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed helper to a top-level collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Get fetches and decodes the document with id. Inside a transaction the read
// takes a lock that lasts until commit.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	var snap *firestore.DocumentSnapshot
	if tx, ok := TransactionFromContext(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	var out T
	if err := snap.DataTo(&out); err != nil {
		return zero, fmt.Errorf("firestore: decode %s/%s: %w", c.name, id, err)
	}
	return out, nil
}

// Create writes a new document and fails with a conflict when id exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		err = tx.Create(ref, value)
	} else {
		_, err = ref.Create(ctx, value)
	}
	return WrapError(c.op("create"), err)
}

// Set overwrites the document with id.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		err = tx.Set(ref, value)
	} else {
		_, err = ref.Set(ctx, value)
	}
	return WrapError(c.op("set"), err)
}

// Replace overwrites an existing document, failing with not found when it is
// absent. Inside a transaction the caller is expected to have read it already.
func (c *Collection[T]) Replace(ctx context.Context, id string, value T) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		return WrapError(c.op("replace"), tx.Set(ref, value))
	}
	return c.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return WrapError(c.op("replace"), err)
		}
		return WrapError(c.op("replace"), tx.Set(ref, value))
	})
}

// Delete removes the document with id, failing with not found when it is absent.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		err = tx.Delete(ref, firestore.Exists)
	} else {
		_, err = ref.Delete(ctx, firestore.Exists)
	}
	return WrapError(c.op("delete"), err)
}

// Query runs a query against the collection and decodes every result.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]T, error) {
	query, err := c.query(ctx, build)
	if err != nil {
		return nil, err
	}
	var iter *firestore.DocumentIterator
	if tx, ok := TransactionFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		var item T
		if err := snap.DataTo(&item); err != nil {
			return nil, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Count runs a server-side count aggregation over the query.
func (c *Collection[T]) Count(ctx context.Context, build QueryBuilder) (int64, error) {
	query, err := c.query(ctx, build)
	if err != nil {
		return 0, err
	}
	result, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, WrapError(c.op("count"), err)
	}
	value, ok := result["total"].(*firestorepb.Value)
	if !ok {
		return 0, repositories.NewError(c.op("count"), repositories.ErrorKindUnknown, errors.New("missing count result"))
	}
	return value.GetIntegerValue(), nil
}

// Doc returns the reference for id.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, repositories.NewError(c.op("doc"), repositories.ErrorKindUnknown, errors.New("document id is required"))
	}
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	coll, err := c.ref(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	return query, nil
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil || c.name == "" {
		return nil, errors.New("firestore: collection not configured")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, repositories.NewError(c.op("client"), repositories.ErrorKindUnavailable, err)
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
