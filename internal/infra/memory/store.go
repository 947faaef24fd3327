// Package memory keeps users, products and alerts in process memory. It backs
// STORE_BACKEND=memory and the test suites; every write is serialized by one
// mutex per repository so conditional updates are genuine compare-and-set.
package memory

import "time"

// Store groups the three repositories over shared process memory.
type Store struct {
	Users    *UserRepository
	Products *ProductRepository
	Alerts   *AlertRepository
}

func NewStore() *Store {
	return &Store{
		Users:    NewUserRepository(),
		Products: NewProductRepository(),
		Alerts:   NewAlertRepository(),
	}
}

var now = func() time.Time { return time.Now().UTC() }
