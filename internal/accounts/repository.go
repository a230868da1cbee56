package accounts

import (
	"context"
	"errors"

	"github.com/shopbooks/shopbooks/internal/docstore"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// Collection is where account documents live in the remote store.
const Collection = "accounts"

// Repository encapsulates store operations for accounts.
type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	ByCode(ctx context.Context, shopID, code string) (*Account, error)
	ByShop(ctx context.Context, shopID string) ([]Account, error)
	ChildrenOf(ctx context.Context, id string) ([]Account, error)
	Put(ctx context.Context, account *Account) error
	PutAll(ctx context.Context, accounts []*Account) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs a Repository over the document store.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Get(ctx context.Context, id string) (*Account, error) {
	var account Account
	if err := r.store.Get(ctx, Collection, id, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ByCode(ctx context.Context, shopID, code string) (*Account, error) {
	raws, err := r.store.Query(ctx, Collection,
		docstore.Eq("shopId", shopID),
		docstore.Eq("accountCode", code))
	if err != nil {
		return nil, err
	}
	found, err := docstore.DecodeAll[Account](raws)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, shared.ErrNotFound
	}
	return &found[0], nil
}

func (r *repository) ByShop(ctx context.Context, shopID string) ([]Account, error) {
	raws, err := r.store.Query(ctx, Collection, docstore.Eq("shopId", shopID))
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[Account](raws)
}

func (r *repository) ChildrenOf(ctx context.Context, id string) ([]Account, error) {
	raws, err := r.store.Query(ctx, Collection, docstore.Eq("parentId", id))
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[Account](raws)
}

func (r *repository) Put(ctx context.Context, account *Account) error {
	if account == nil || account.ID == "" {
		return errors.New("accounts: id required")
	}
	return r.store.Put(ctx, Collection, account.ID, account)
}

func (r *repository) PutAll(ctx context.Context, accounts []*Account) error {
	batch := r.store.Batch()
	for _, account := range accounts {
		if account == nil || account.ID == "" {
			return errors.New("accounts: id required")
		}
		batch.Set(Collection, account.ID, account)
	}
	return batch.Commit(ctx)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Collection, id)
}
