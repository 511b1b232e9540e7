package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/growthledger/event"
)

var reconcilable = bson.M{"kind": bson.M{"$ne": string(event.KindSimulated)}}

func (s *Store) ListReconcilable(ctx context.Context) ([]*event.Record, error) {
	return s.findEvents(ctx, "list events",
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) CountReconcilable(ctx context.Context) (int64, error) {
	return query(ctx, s, "count events", func(ctx context.Context) (int64, error) {
		return s.db.Collection(colEvents).CountDocuments(ctx, reconcilable)
	})
}

func (s *Store) RecentReconcilable(ctx context.Context, limit int) ([]*event.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return s.findEvents(ctx, "recent events", opts)
}

func (s *Store) findEvents(ctx context.Context, op string, opts *options.FindOptionsBuilder) ([]*event.Record, error) {
	return query(ctx, s, op, func(ctx context.Context) ([]*event.Record, error) {
		cur, err := s.db.Collection(colEvents).Find(ctx, reconcilable, opts)
		if err != nil {
			return nil, err
		}
		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return nil, err
		}

		result := make([]*event.Record, 0, len(docs))
		for _, doc := range docs {
			r, err := recordFromDocument(doc)
			if err != nil {
				return nil, err
			}
			result = append(result, r)
		}
		return result, nil
	})
}
