package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
)

// ==================== Entry Store ====================

func (s *Store) HasEntry(ctx context.Context, transactionID string) (bool, error) {
	return query(ctx, s, "has entry", func(ctx context.Context) (bool, error) {
		n, err := s.db.Collection(colEntries).CountDocuments(ctx,
			bson.M{"transaction_id": transactionID}, options.Count().SetLimit(1))
		return n > 0, err
	})
}

func (s *Store) GetEntry(ctx context.Context, transactionID string) (*entry.Entry, error) {
	m, err := query(ctx, s, "get entry", func(ctx context.Context) (*entryModel, error) {
		var m entryModel
		err := s.db.Collection(colEntries).FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&m)
		return &m, err
	})
	if err != nil {
		if isNoDocuments(err) {
			return nil, growthledger.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

// AppendEntries inserts the entries with one unordered bulk insert.
// Duplicate-key rejections from the unique transaction_id index are skipped;
// any other write error fails the call. Without a replica-set transaction
// the insert is per document, so a failed call may have stored a prefix of
// the batch; a re-run skips those rows as duplicates.
func (s *Store) AppendEntries(ctx context.Context, entries []*entry.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	docs := make([]any, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("growthledger/mongo: append: %w", err)
		}
		docs[i] = toEntryModel(e)
	}

	return query(ctx, s, "append entries", func(ctx context.Context) ([]string, error) {
		_, err := s.db.Collection(colEntries).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
		rejected, err := duplicateIndexes(err)
		if err != nil {
			return nil, err
		}

		inserted := make([]string, 0, len(entries))
		for i, e := range entries {
			if !rejected[i] {
				inserted = append(inserted, e.TransactionID)
			}
		}
		return inserted, nil
	})
}

// duplicateIndexes returns the batch positions rejected as duplicate keys.
// It returns err unchanged when anything other than duplicates failed.
func duplicateIndexes(err error) (map[int]bool, error) {
	if err == nil {
		return nil, nil
	}

	var writeErrs []mongo.BulkWriteError
	var bwe mongo.BulkWriteException
	var pbwe *mongo.BulkWriteException
	switch {
	case errors.As(err, &bwe):
		if bwe.WriteConcernError != nil {
			return nil, err
		}
		writeErrs = bwe.WriteErrors
	case errors.As(err, &pbwe):
		if pbwe.WriteConcernError != nil {
			return nil, err
		}
		writeErrs = pbwe.WriteErrors
	default:
		return nil, err
	}

	rejected := make(map[int]bool, len(writeErrs))
	for _, we := range writeErrs {
		if !isDuplicateKeyCode(we.Code) {
			return nil, err
		}
		rejected[we.Index] = true
	}
	return rejected, nil
}

func isDuplicateKeyCode(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

func (s *Store) CountEntries(ctx context.Context) (int64, error) {
	return query(ctx, s, "count entries", func(ctx context.Context) (int64, error) {
		return s.db.Collection(colEntries).CountDocuments(ctx, bson.M{})
	})
}

func (s *Store) RecentEntries(ctx context.Context, limit int) ([]*entry.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	models, err := query(ctx, s, "recent entries", func(ctx context.Context) ([]entryModel, error) {
		cur, err := s.db.Collection(colEntries).Find(ctx, bson.M{}, opts)
		if err != nil {
			return nil, err
		}
		var models []entryModel
		err = cur.All(ctx, &models)
		return models, err
	})
	if err != nil {
		return nil, err
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) ClearedTotals(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: string(entry.StatusCleared)}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$currency"},
			{Key: "cents", Value: bson.D{{Key: "$sum", Value: "$amount_cents"}}},
		}}},
	}

	return query(ctx, s, "cleared totals", func(ctx context.Context) (map[string]int64, error) {
		cur, err := s.db.Collection(colEntries).Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		var rows []struct {
			Currency string `bson:"_id"`
			Cents    int64  `bson:"cents"`
		}
		if err := cur.All(ctx, &rows); err != nil {
			return nil, err
		}

		totals := make(map[string]int64, len(rows))
		for _, r := range rows {
			totals[r.Currency] = r.Cents
		}
		return totals, nil
	})
}

// ==================== Payout Store ====================

func (s *Store) GetPayout(ctx context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	m, err := query(ctx, s, "get payout", func(ctx context.Context) (*payoutModel, error) {
		var m payoutModel
		err := s.db.Collection(colPayouts).FindOne(ctx, bson.M{"_id": payoutID.String()}).Decode(&m)
		return &m, err
	})
	if err != nil {
		if isNoDocuments(err) {
			return nil, growthledger.ErrPayoutNotFound
		}
		return nil, err
	}
	return fromPayoutModel(m)
}

func (s *Store) ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Payout, error) {
	filter := bson.M{}
	if opts.Stream != "" {
		filter["stream"] = string(opts.Stream)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	find := options.Find().SetSort(bson.D{{Key: "cycle_end", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		find = find.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		find = find.SetSkip(int64(opts.Offset))
	}

	models, err := query(ctx, s, "list payouts", func(ctx context.Context) ([]payoutModel, error) {
		cur, err := s.db.Collection(colPayouts).Find(ctx, filter, find)
		if err != nil {
			return nil, err
		}
		var models []payoutModel
		err = cur.All(ctx, &models)
		return models, err
	})
	if err != nil {
		return nil, err
	}

	result := make([]*payout.Payout, len(models))
	for i := range models {
		p, err := fromPayoutModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) CountPayouts(ctx context.Context) (int64, error) {
	return query(ctx, s, "count payouts", func(ctx context.Context) (int64, error) {
		return s.db.Collection(colPayouts).CountDocuments(ctx, bson.M{})
	})
}
