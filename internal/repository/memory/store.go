// Package memory is an in-process repository.Store for tests and local runs.
// WithTx serializes against every other call and rolls back on error.
package memory

import (
	"context"
	"sync"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

type Store struct {
	*view
	mu   sync.Mutex
	data *data
}

var _ repository.Store = (*Store)(nil)

type data struct {
	users        map[string]models.User
	bills        map[string]models.CashBill
	transactions []models.Transaction
	funds        map[string]models.FundApplication
	accounts     map[string]models.PaymentAccount
}

func newData() *data {
	return &data{
		users:    make(map[string]models.User),
		bills:    make(map[string]models.CashBill),
		funds:    make(map[string]models.FundApplication),
		accounts: make(map[string]models.PaymentAccount),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.bills {
		c.bills[k] = v
	}
	for k, v := range d.funds {
		c.funds[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	c.transactions = append([]models.Transaction(nil), d.transactions...)
	return c
}

func New() *Store {
	s := &Store{data: newData()}
	s.view = &view{store: s}
	return s
}

// view implements repository.Queries. A view handed out by WithTx already holds the lock.
type view struct {
	store *Store
	inTx  bool
}

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.store.mu.Lock()
	return v.store.mu.Unlock
}

func (v *view) d() *data {
	return v.store.data
}

func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&view{store: s, inTx: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// AddUser seeds the user directory.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

// Transactions returns a copy of the whole ledger.
func (s *Store) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Transaction(nil), s.data.transactions...)
}

func page[T any](items []T, p repository.Pagination) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
