package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	reckon "github.com/xraph/reckon"
	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/meter"
	reckonstore "github.com/xraph/reckon/store"
	"github.com/xraph/reckon/subscription"
)

// compile-time interface check
var _ reckonstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("reckon/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("reckon/postgres: migration failed: %w", err)
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

// AdmitEvent wins admission through the primary-key conflict: the INSERT is
// the atomic test-and-set. A prior failed attempt is reclaimed with a
// guarded UPDATE so redelivery retries the whole event.
func (s *Store) AdmitEvent(ctx context.Context, record *event.Record) (*event.Record, bool, error) {
	m := toEventModel(record)
	res, err := s.pg.NewInsert(m).
		OnConflict("(event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows > 0 {
		return record, true, nil
	}

	// Lost the insert: reclaim only if the prior attempt failed.
	res, err = s.pg.NewUpdate((*eventModel)(nil)).
		Set("type = $1", string(record.Type)).
		Set("payload = $2", []byte(record.Payload)).
		Set("received_at = $3", record.ReceivedAt).
		Set("outcome = $4", "").
		Set("error = $5", "").
		Set("processed_at = NULL").
		Where("event_id = $6", record.EventID).
		Where("outcome = $7", string(event.OutcomeFailed)).
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows > 0 {
		return record, true, nil
	}

	prior, err := s.GetEvent(ctx, record.EventID)
	if err != nil {
		return nil, false, err
	}
	return prior, false, nil
}

func (s *Store) CommitEvent(ctx context.Context, eventID string, outcome event.Outcome, procErr string) error {
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("outcome = $1", string(outcome)).
		Set("error = $2", procErr).
		Set("processed_at = $3", now()).
		Where("event_id = $4", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reckon.ErrEventNotFound
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*event.Record, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("event_id = $1", eventID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reckon.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m), nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.pg.NewInsert(m).
		OnConflict("(provider_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reckon.ErrSubscriptionExists
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reckon.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) GetSubscriptionByProviderID(ctx context.Context, providerID string) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("provider_id = $1", providerID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reckon.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	err := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reckon.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Invoice reference Store ====================

func (s *Store) PutInvoiceRef(ctx context.Context, ref *reckonstore.InvoiceRef) error {
	m := toInvoiceRefModel(ref)
	_, err := s.pg.NewInsert(m).
		OnConflict("(invoice_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) GetInvoiceRef(ctx context.Context, invoiceID string) (*reckonstore.InvoiceRef, error) {
	m := new(invoiceRefModel)
	err := s.pg.NewSelect(m).
		Where("invoice_id = $1", invoiceID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reckon.ErrNotFound
		}
		return nil, err
	}
	return fromInvoiceRefModel(m), nil
}

// ==================== Credit ledger Store ====================

func (s *Store) AppendLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error {
	m := toLedgerEntryModel(entry)
	// The unique (customer_id, reason, external_ref) index is the last line
	// of defense against cross-process races; in-process callers already
	// serialize per customer.
	res, err := s.pg.NewInsert(m).
		OnConflict("(customer_id, reason, external_ref) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reckon.ErrConflict
	}
	return nil
}

func (s *Store) FindLedgerEntry(ctx context.Context, customerID string, reason credit.Reason, externalRef string) (*credit.LedgerEntry, error) {
	m := new(ledgerEntryModel)
	err := s.pg.NewSelect(m).
		Where("customer_id = $1", customerID).
		Where("reason = $2", string(reason)).
		Where("external_ref = $3", externalRef).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromLedgerEntryModel(m)
}

func (s *Store) LedgerBalance(ctx context.Context, customerID string) (int64, error) {
	var balance int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(delta), 0) FROM reckon_ledger_entries
		WHERE customer_id = $1
	`, customerID).Scan(ctx, &balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, customerID string, limit, offset int) ([]*credit.LedgerEntry, error) {
	var models []ledgerEntryModel
	q := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID).
		OrderExpr("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.pg.NewInsert(m).
		OnConflict("(subscription_item_id, idempotency_token) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) SumUsage(ctx context.Context, subscriptionItemID, bucket string) (int64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(quantity), 0) FROM reckon_usage_records
		WHERE subscription_item_id = $1 AND period_bucket = $2
	`, subscriptionItemID, bucket).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) error {
	m := &closedPeriodModel{
		SubscriptionItemID: subscriptionItemID,
		PeriodBucket:       bucket,
		ClosedAt:           now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(subscription_item_id, period_bucket) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) IsPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) (bool, error) {
	m := new(closedPeriodModel)
	err := s.pg.NewSelect(m).
		Where("subscription_item_id = $1", subscriptionItemID).
		Where("period_bucket = $2", bucket).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
