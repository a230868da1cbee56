package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// CacheBumper invalidates cached report results after the ledger changes.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service is the posting engine: it turns validated candidate transactions
// into persisted, balanced ledger state.
type Service struct {
	repo      Repository
	validator *Validator
	cache     CacheBumper
	now       func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo Repository, validator *Validator, cache CacheBumper) *Service {
	return &Service{repo: repo, validator: validator, cache: cache, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Validate exposes the rule engine without posting, so collaborators can
// pre-flight a candidate.
func (s *Service) Validate(ctx context.Context, in PostingInput, actor shared.Actor) (*Result, error) {
	tx := transactionFrom(in)
	return s.validator.Validate(ctx, tx, actor)
}

// Post validates and persists a transaction atomically with its balance
// adjustments. When in.ID names an already-posted transaction the call is a
// no-op returning the stored record, which makes a retried post after a
// crash safe rather than a duplicate.
func (s *Service) Post(ctx context.Context, in PostingInput, actor shared.Actor) (*Transaction, error) {
	if in.ID != "" {
		existing, err := s.repo.GetTransaction(ctx, in.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	tx := transactionFrom(in)
	result, err := s.validator.Validate(ctx, tx, actor)
	if err != nil {
		return nil, err
	}
	if err := result.AsError(); err != nil {
		return nil, err
	}

	now := s.now()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.FinancialYearID = result.Year.ID
	tx.Status = StatusPosted
	tx.CreatedBy = actor.ID
	tx.CreatedAt = now
	tx.UpdatedAt = now

	deltas := deltasFor(tx.Entries, tx.FinancialYearID, false)
	if err := s.repo.ApplyPosting(ctx, tx, deltas, now); err != nil {
		return nil, err
	}
	s.bump(ctx)
	return tx, nil
}

// Reverse marks a posted transaction reversed and applies the inverse delta
// to every affected balance. Only transactions in an open financial year can
// be reversed.
func (s *Service) Reverse(ctx context.Context, id, reason string, actor shared.Actor) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status == StatusReversed {
		return nil, &shared.StateError{Reason: "transaction already reversed"}
	}
	if err := s.requireOpenYear(ctx, tx); err != nil {
		return nil, err
	}

	now := s.now()
	tx.Status = StatusReversed
	tx.ReversalReason = reason
	tx.UpdatedAt = now
	deltas := deltasFor(tx.Entries, tx.FinancialYearID, true)
	if err := s.repo.ApplyReversal(ctx, tx, deltas, now); err != nil {
		return nil, err
	}
	s.bump(ctx)
	return tx, nil
}

// Update edits a posted transaction: the old balance effects are reversed,
// the new transaction is validated, and the new effects applied, all in one
// atomic batch. Either every step lands or none does.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, actor shared.Actor) (*Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusReversed {
		return nil, &shared.StateError{Reason: "cannot edit a reversed transaction"}
	}
	if err := s.requireOpenYear(ctx, current); err != nil {
		return nil, err
	}

	updated := *current
	if in.Date != nil {
		updated.Date = *in.Date
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	if in.Type != nil {
		updated.Type = *in.Type
	}
	if in.Entries != nil {
		updated.Entries = entriesFrom(in.Entries)
	}
	if in.CategoryID != nil {
		updated.CategoryID = *in.CategoryID
	}
	if in.PartyID != nil {
		updated.PartyID = *in.PartyID
	}
	if in.Reference != nil {
		updated.Reference = *in.Reference
	}

	result, err := s.validator.Validate(ctx, &updated, actor)
	if err != nil {
		return nil, err
	}
	if err := result.AsError(); err != nil {
		return nil, err
	}

	now := s.now()
	updated.FinancialYearID = result.Year.ID
	updated.UpdatedAt = now

	deltas := deltasFor(current.Entries, current.FinancialYearID, true)
	deltas = append(deltas, deltasFor(updated.Entries, updated.FinancialYearID, false)...)
	if err := s.repo.ApplyPosting(ctx, &updated, deltas, now); err != nil {
		return nil, err
	}
	s.bump(ctx)
	return &updated, nil
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// List returns the shop's transactions for a year, paginated, newest first.
func (s *Service) List(ctx context.Context, shopID, financialYearID string, page, perPage int) ([]Transaction, shared.Pagination, error) {
	txs, err := s.repo.TransactionsByShopYear(ctx, shopID, financialYearID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	// Newest first for listings; the repository returns date ascending.
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	p := shared.NewPagination(page, perPage, len(txs))
	start, end := p.Slice()
	return txs[start:end], p, nil
}

// HasActivity implements the account directory's history check.
func (s *Service) HasActivity(ctx context.Context, accountID string) (bool, error) {
	return s.repo.HasActivity(ctx, accountID)
}

func (s *Service) requireOpenYear(ctx context.Context, tx *Transaction) error {
	year, err := s.validator.years.YearByID(ctx, tx.FinancialYearID)
	if err != nil {
		return err
	}
	if !year.IsOpen() {
		return &shared.StateError{Reason: "financial year is closed"}
	}
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}

func transactionFrom(in PostingInput) *Transaction {
	return &Transaction{
		ID:          in.ID,
		ShopID:      in.ShopID,
		Date:        in.Date,
		Description: in.Description,
		Type:        in.Type,
		Entries:     entriesFrom(in.Entries),
		CategoryID:  in.CategoryID,
		PartyID:     in.PartyID,
		Reference:   in.Reference,
	}
}

func entriesFrom(inputs []EntryInput) []Entry {
	out := make([]Entry, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, Entry{
			AccountID:   in.AccountID,
			Type:        sideFrom(in.Type),
			Amount:      in.Amount,
			Description: in.Description,
		})
	}
	return out
}
