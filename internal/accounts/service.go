package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// DefaultMaxDepth bounds the account hierarchy when no override is configured.
const DefaultMaxDepth = 5

// HistoryChecker reports whether an account has any posted activity. The
// ledger package provides the production implementation.
type HistoryChecker interface {
	HasActivity(ctx context.Context, accountID string) (bool, error)
}

// Service owns chart-of-accounts mutations and reads.
type Service struct {
	repo     Repository
	history  HistoryChecker
	maxDepth int
	now      func() time.Time
}

// NewService constructs the account directory service.
func NewService(repo Repository, history HistoryChecker, maxDepth int) *Service {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Service{repo: repo, history: history, maxDepth: maxDepth, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and persists a new account. Every violated rule is
// collected so the caller sees the complete list at once.
func (s *Service) Create(ctx context.Context, in CreateInput, actor shared.Actor) (*Account, error) {
	var problems []string
	if len(in.Name) < 3 {
		problems = append(problems, "name must be at least 3 characters")
	}
	if len(in.AccountCode) < 2 {
		problems = append(problems, "account code must be at least 2 characters")
	}
	if in.ShopID == "" {
		problems = append(problems, "shop id required")
	}
	if !KnownType(in.Type) {
		problems = append(problems, fmt.Sprintf("unknown account type %q", in.Type))
	}
	if !actor.CanAccessShop(in.ShopID) {
		problems = append(problems, "actor may not create accounts for another shop")
	}
	if !actor.IsAdmin() {
		if KnownType(in.Type) && !UserMayCreate(in.Type) {
			problems = append(problems, fmt.Sprintf("account type %q requires the admin role", in.Type))
		}
		if in.ParentID == "" {
			problems = append(problems, "non-admin accounts must declare a parent")
		}
	}

	if in.AccountCode != "" && in.ShopID != "" {
		existing, err := s.repo.ByCode(ctx, in.ShopID, in.AccountCode)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			problems = append(problems, fmt.Sprintf("account code %q already used in shop", in.AccountCode))
		}
	}

	level := 1
	if in.ParentID != "" {
		parent, err := s.repo.Get(ctx, in.ParentID)
		if errors.Is(err, shared.ErrNotFound) {
			problems = append(problems, "declared parent does not exist")
		} else if err != nil {
			return nil, err
		} else {
			switch {
			case !parent.IsActive:
				problems = append(problems, "declared parent is inactive")
			case parent.ShopID != in.ShopID:
				problems = append(problems, "parent belongs to a different shop")
			case !actor.IsAdmin() && RestrictedParent(parent.Type):
				problems = append(problems, fmt.Sprintf("parent type %q requires the admin role", parent.Type))
			default:
				level = parent.Level + 1
				if level > s.maxDepth {
					problems = append(problems, fmt.Sprintf("hierarchy depth %d exceeds maximum %d", level, s.maxDepth))
				}
			}
		}
	}

	if len(problems) > 0 {
		return nil, &shared.ValidationError{Errors: problems}
	}

	now := s.now()
	account := &Account{
		ID:             uuid.NewString(),
		ShopID:         in.ShopID,
		AccountCode:    in.AccountCode,
		Name:           in.Name,
		Classification: DefaultClassification(in.Type),
		Nature:         DefaultNature(in.Type),
		Type:           in.Type,
		ParentID:       in.ParentID,
		Level:          level,
		IsActive:       true,
		OpeningBalance: in.OpeningBalance,
		Category:       in.Category,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Put(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a rename/re-parent/re-categorise patch. Re-parenting is
// rejected with CycleError when the new parent sits inside the account's own
// subtree, and with ValidationError when it would breach the depth limit.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if len(*in.Name) < 3 {
			return nil, shared.NewValidationError("name must be at least 3 characters")
		}
		account.Name = *in.Name
	}
	if in.Category != nil {
		account.Category = *in.Category
	}
	account.UpdatedAt = s.now()
	if in.ParentID != nil && *in.ParentID != account.ParentID {
		if err := s.reparent(ctx, account, *in.ParentID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Put(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) reparent(ctx context.Context, account *Account, newParentID string) error {
	if newParentID == "" {
		account.ParentID = ""
		updated, err := s.relevel(ctx, account, 1)
		if err != nil {
			return err
		}
		return s.repo.PutAll(ctx, updated)
	}
	if newParentID == account.ID {
		return &shared.CycleError{AccountID: account.ID, ParentID: newParentID}
	}
	parent, err := s.repo.Get(ctx, newParentID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewValidationError("declared parent does not exist")
	}
	if err != nil {
		return err
	}
	if !parent.IsActive {
		return shared.NewValidationError("declared parent is inactive")
	}
	if parent.ShopID != account.ShopID {
		return shared.NewValidationError("parent belongs to a different shop")
	}
	descendant, err := s.isDescendant(ctx, account.ID, newParentID)
	if err != nil {
		return err
	}
	if descendant {
		return &shared.CycleError{AccountID: account.ID, ParentID: newParentID}
	}
	account.ParentID = newParentID
	updated, err := s.relevel(ctx, account, parent.Level+1)
	if err != nil {
		return err
	}
	return s.repo.PutAll(ctx, updated)
}

// isDescendant walks the parent chain upward from candidateID, by id only,
// bounded by the depth limit. Revisiting an id counts as a cycle.
func (s *Service) isDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error) {
	seen := map[string]bool{}
	current := candidateID
	for range s.maxDepth + 1 {
		if current == ancestorID {
			return true, nil
		}
		if seen[current] {
			return true, nil
		}
		seen[current] = true
		node, err := s.repo.Get(ctx, current)
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if node.ParentID == "" {
			return false, nil
		}
		current = node.ParentID
	}
	return true, nil
}

// relevel assigns the account's level and walks its subtree collecting the
// accounts whose levels change. Nothing is persisted here; the caller commits
// the returned set in one batch, so a depth breach anywhere in the subtree
// leaves every stored level untouched.
func (s *Service) relevel(ctx context.Context, account *Account, level int) ([]*Account, error) {
	if level > s.maxDepth {
		return nil, shared.NewValidationError(fmt.Sprintf("hierarchy depth %d exceeds maximum %d", level, s.maxDepth))
	}
	account.Level = level
	updated := []*Account{account}
	children, err := s.repo.ChildrenOf(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		child := children[i]
		child.UpdatedAt = s.now()
		sub, err := s.relevel(ctx, &child, level+1)
		if err != nil {
			return nil, err
		}
		updated = append(updated, sub...)
	}
	return updated, nil
}

// ToggleActive flips the active flag. Deactivating an account with active
// children is refused; deactivating one with posted history is allowed but
// reported as a warning.
func (s *Service) ToggleActive(ctx context.Context, id string) (*Account, string, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	var warning string
	if account.IsActive {
		children, err := s.repo.ChildrenOf(ctx, id)
		if err != nil {
			return nil, "", err
		}
		for _, child := range children {
			if child.IsActive {
				return nil, "", &shared.DependencyError{Reason: "account has active children"}
			}
		}
		if s.history != nil {
			used, err := s.history.HasActivity(ctx, id)
			if err != nil {
				return nil, "", err
			}
			if used {
				warning = "account has posted transactions; deactivating hides it from new postings only"
			}
		}
	}
	account.IsActive = !account.IsActive
	account.UpdatedAt = s.now()
	if err := s.repo.Put(ctx, account); err != nil {
		return nil, "", err
	}
	return account, warning, nil
}

// Delete removes an account that has no children and no posted history.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if s.history != nil {
		used, err := s.history.HasActivity(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return &shared.DependencyError{Reason: "account has posted transactions"}
		}
	}
	children, err := s.repo.ChildrenOf(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &shared.DependencyError{Reason: "account has children"}
	}
	return s.repo.Delete(ctx, id)
}

// Hierarchy returns the shop's accounts as a level-assigned forest.
func (s *Service) Hierarchy(ctx context.Context, shopID string) ([]*Node, error) {
	all, err := s.repo.ByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(all), nil
}
