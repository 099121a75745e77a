package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	reckon "github.com/xraph/reckon"
	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/meter"
	reckonstore "github.com/xraph/reckon/store"
	"github.com/xraph/reckon/subscription"
)

// Collection name constants.
const (
	colEvents        = "reckon_events"
	colSubscriptions = "reckon_subscriptions"
	colInvoiceRefs   = "reckon_invoice_refs"
	colLedgerEntries = "reckon_ledger_entries"
	colUsageRecords  = "reckon_usage_records"
	colClosedPeriods = "reckon_closed_periods"
)

// compile-time interface check
var _ reckonstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("reckon/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

// AdmitEvent wins admission through the _id duplicate-key error: the insert
// is the atomic test-and-set. A prior failed attempt is reclaimed with a
// guarded update so redelivery retries the whole event.
func (s *Store) AdmitEvent(ctx context.Context, record *event.Record) (*event.Record, bool, error) {
	m := toEventModel(record)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err == nil {
		return record, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("reckon/mongo: admit event: %w", err)
	}

	// Lost the insert: reclaim only if the prior attempt failed.
	res, err := s.mdb.NewUpdate((*eventModel)(nil)).
		Filter(bson.M{"_id": record.EventID, "outcome": string(event.OutcomeFailed)}).
		SetUpdate(bson.M{"$set": bson.M{
			"type":         string(record.Type),
			"payload":      []byte(record.Payload),
			"received_at":  record.ReceivedAt,
			"outcome":      "",
			"error":        "",
			"processed_at": nil,
		}}).
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reckon/mongo: readmit event: %w", err)
	}
	if res.MatchedCount() > 0 {
		return record, true, nil
	}

	prior, err := s.GetEvent(ctx, record.EventID)
	if err != nil {
		return nil, false, err
	}
	return prior, false, nil
}

func (s *Store) CommitEvent(ctx context.Context, eventID string, outcome event.Outcome, procErr string) error {
	res, err := s.mdb.NewUpdate((*eventModel)(nil)).
		Filter(bson.M{"_id": eventID}).
		Set("outcome", string(outcome)).
		Set("error", procErr).
		Set("processed_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reckon/mongo: commit event: %w", err)
	}
	if res.MatchedCount() == 0 {
		return reckon.ErrEventNotFound
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*event.Record, error) {
	var m eventModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": eventID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, reckon.ErrEventNotFound
		}
		return nil, fmt.Errorf("reckon/mongo: get event: %w", err)
	}
	return fromEventModel(&m), nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reckon.ErrSubscriptionExists
		}
		return fmt.Errorf("reckon/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, reckon.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("reckon/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetSubscriptionByProviderID(ctx context.Context, providerID string) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"provider_id": providerID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, reckon.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("reckon/mongo: get subscription by provider id: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"customer_id": customerID}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reckon/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reckon/mongo: update subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return reckon.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Invoice reference Store ====================

func (s *Store) PutInvoiceRef(ctx context.Context, ref *reckonstore.InvoiceRef) error {
	m := toInvoiceRefModel(ref)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("reckon/mongo: put invoice ref: %w", err)
	}
	return nil
}

func (s *Store) GetInvoiceRef(ctx context.Context, invoiceID string) (*reckonstore.InvoiceRef, error) {
	var m invoiceRefModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invoiceID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, reckon.ErrNotFound
		}
		return nil, fmt.Errorf("reckon/mongo: get invoice ref: %w", err)
	}
	return fromInvoiceRefModel(&m), nil
}

// ==================== Credit ledger Store ====================

func (s *Store) AppendLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error {
	m := toLedgerEntryModel(entry)
	// The unique (customer_id, reason, external_ref) index is the last line
	// of defense against cross-process races; in-process callers already
	// serialize per customer.
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reckon.ErrConflict
		}
		return fmt.Errorf("reckon/mongo: append ledger entry: %w", err)
	}
	return nil
}

func (s *Store) FindLedgerEntry(ctx context.Context, customerID string, reason credit.Reason, externalRef string) (*credit.LedgerEntry, error) {
	var m ledgerEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"customer_id":  customerID,
			"reason":       string(reason),
			"external_ref": externalRef,
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reckon/mongo: find ledger entry: %w", err)
	}
	return fromLedgerEntryModel(&m)
}

func (s *Store) LedgerBalance(ctx context.Context, customerID string) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"customer_id": customerID}},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$delta"},
		}},
	}

	cursor, err := s.mdb.Collection(colLedgerEntries).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("reckon/mongo: ledger balance: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("reckon/mongo: ledger balance decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, customerID string, limit, offset int) ([]*credit.LedgerEntry, error) {
	var models []ledgerEntryModel

	// Entry ids are time-ordered, so _id breaks created_at ties in
	// insertion order.
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"customer_id": customerID}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if offset > 0 {
		q = q.Skip(int64(offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("reckon/mongo: list ledger entries: %w", err)
	}

	result := make([]*credit.LedgerEntry, len(models))
	for i := range models {
		e, err := fromLedgerEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Usage metering Store ====================

func (s *Store) InsertUsageRecord(ctx context.Context, record *meter.UsageRecord) (bool, error) {
	m := toUsageRecordModel(record)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("reckon/mongo: insert usage record: %w", err)
	}
	return true, nil
}

func (s *Store) SumUsage(ctx context.Context, subscriptionItemID, bucket string) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"subscription_item_id": subscriptionItemID,
			"period_bucket":        bucket,
		}},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$quantity"},
		}},
	}

	cursor, err := s.mdb.Collection(colUsageRecords).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("reckon/mongo: sum usage: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("reckon/mongo: sum usage decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (s *Store) MarkPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) error {
	m := &closedPeriodModel{
		Key:                closedPeriodKey(subscriptionItemID, bucket),
		SubscriptionItemID: subscriptionItemID,
		PeriodBucket:       bucket,
		ClosedAt:           now(),
	}
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("reckon/mongo: mark period closed: %w", err)
	}
	return nil
}

func (s *Store) IsPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) (bool, error) {
	var m closedPeriodModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": closedPeriodKey(subscriptionItemID, bucket)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("reckon/mongo: is period closed: %w", err)
	}
	return true, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEvents: {
			{Keys: bson.D{{Key: "outcome", Value: 1}}},
			{Keys: bson.D{{Key: "received_at", Value: -1}}},
		},
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "provider_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "state", Value: 1}}},
		},
		colInvoiceRefs: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}}},
		},
		colLedgerEntries: {
			{
				Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "reason", Value: 1}, {Key: "external_ref", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colUsageRecords: {
			{
				Keys:    bson.D{{Key: "subscription_item_id", Value: 1}, {Key: "idempotency_token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "subscription_item_id", Value: 1}, {Key: "period_bucket", Value: 1}}},
		},
		colClosedPeriods: {},
	}
}
