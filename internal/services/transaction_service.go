package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// TransactionStore is the persistence the services need. Every call is
// scoped to an owner; rows of other owners behave as missing.
type TransactionStore interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, owner string, id int64) (core.Transaction, error)
	Update(ctx context.Context, owner string, id int64, f core.Fields) (core.Transaction, error)
	Delete(ctx context.Context, owner string, id int64) error
	List(ctx context.Context, owner string, sort core.SortKey) ([]core.Transaction, error)
}

// Publisher announces transaction changes to other instances.
type Publisher interface {
	Publish(ctx context.Context, msg amqp.ChangeMessage) error
}

// Invalidator drops cached data derived from an owner's transactions.
type Invalidator interface {
	InvalidateOwner(owner string)
}

// TransactionService validates and applies changes on behalf of an owner.
type TransactionService struct {
	store       TransactionStore
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
	events      *log.StructuredLogger
	now         func() time.Time
}

// NewTransactionService wires the service. publisher and invalidator may
// be nil.
func NewTransactionService(store TransactionStore, publisher Publisher, invalidator Invalidator, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentTransaction)
	return &TransactionService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
		now:         time.Now,
	}
}

func checkOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return core.ErrEmptyOwner
	}
	return nil
}

// Create validates f and stores a new transaction owned by owner.
func (s *TransactionService) Create(ctx context.Context, owner string, f core.Fields) (core.Transaction, error) {
	if err := checkOwner(owner); err != nil {
		return core.Transaction{}, err
	}
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{Owner: owner, CreatedAt: s.now().UTC()}.Apply(f)
	created, err := s.store.Create(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.changed(ctx, log.OpCreate, amqp.OpCreated, created)
	return created, nil
}

// Get returns an owned transaction.
func (s *TransactionService) Get(ctx context.Context, owner string, id int64) (core.Transaction, error) {
	if err := checkOwner(owner); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, wrapStoreErr("get transaction", err)
	}
	return t, nil
}

// Update replaces the editable fields of an owned transaction.
func (s *TransactionService) Update(ctx context.Context, owner string, id int64, f core.Fields) (core.Transaction, error) {
	if err := checkOwner(owner); err != nil {
		return core.Transaction{}, err
	}
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.Update(ctx, owner, id, f)
	if err != nil {
		return core.Transaction{}, wrapStoreErr("update transaction", err)
	}

	s.changed(ctx, log.OpUpdate, amqp.OpUpdated, updated)
	return updated, nil
}

// Delete removes an owned transaction.
func (s *TransactionService) Delete(ctx context.Context, owner string, id int64) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, owner, id); err != nil {
		return wrapStoreErr("delete transaction", err)
	}

	s.changed(ctx, log.OpDelete, amqp.OpDeleted, core.Transaction{ID: id, Owner: owner})
	return nil
}

// List returns the owner's transactions ordered by the normalized sort key.
func (s *TransactionService) List(ctx context.Context, owner string, sort string) ([]core.Transaction, core.SortKey, error) {
	key := core.NormalizeSort(sort)
	if err := checkOwner(owner); err != nil {
		return nil, key, err
	}
	list, err := s.store.List(ctx, owner, key)
	if err != nil {
		return nil, key, fmt.Errorf("list transactions: %w", err)
	}
	if list == nil {
		list = []core.Transaction{}
	}
	return list, key, nil
}

// changed runs the post-mutation side effects. Neither can fail the
// request: the row is already committed.
func (s *TransactionService) changed(ctx context.Context, op string, event amqp.Op, t core.Transaction) {
	s.events.LogTransactionChanged(ctx, op, t.Owner, t.ID, string(t.Kind), t.Category, core.ToCents(t.Amount))

	if s.invalidator != nil {
		s.invalidator.InvalidateOwner(t.Owner)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewChangeMessage(t.Owner, t.ID, event)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change event",
			log.FieldError, err,
			log.FieldOwner, t.Owner,
			log.FieldTransactionID, t.ID)
	}
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
