// Package cart is the in-memory shopping cart: a list of (product, quantity)
// pairs, unique per product, with a reactive change stream.
package cart

import (
	"sync"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/stream"
)

// Store holds the cart contents. All mutations broadcast a fresh copy of the
// item list to subscribers.
type Store struct {
	mu      sync.Mutex
	items   []models.CartItem
	changes *stream.Value[[]models.CartItem]
}

func New() *Store {
	return &Store{
		changes: stream.New[[]models.CartItem](nil),
	}
}

// Watch exposes the cart change stream. Subscribers receive the current
// contents immediately, then a snapshot after every mutation.
func (s *Store) Watch() *stream.Value[[]models.CartItem] {
	return s.changes
}

// Items returns a snapshot of the cart contents.
func (s *Store) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Add puts quantity units of product in the cart, merging with an existing
// entry for the same product.
func (s *Store) Add(product models.Product, quantity int) {
	if quantity <= 0 {
		return
	}
	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].Product.ID == product.ID {
			s.items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, models.CartItem{Product: product, Quantity: quantity})
	}
	s.publishLocked()
	s.mu.Unlock()
}

// UpdateQuantity sets the quantity for a product already in the cart.
// Quantities below zero are clamped to zero; unknown products are ignored.
func (s *Store) UpdateQuantity(productID, quantity int) {
	if quantity < 0 {
		quantity = 0
	}
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].Product.ID == productID {
			s.items[i].Quantity = quantity
			s.publishLocked()
			break
		}
	}
	s.mu.Unlock()
}

// Remove drops the entry for the given product.
func (s *Store) Remove(productID int) {
	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if item.Product.ID != productID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	s.publishLocked()
	s.mu.Unlock()
}

// Total returns the sum of price*quantity over all entries; 0 for an empty cart.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, item := range s.items {
		total += item.Product.Price * float64(item.Quantity)
	}
	return total
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Store) snapshot() []models.CartItem {
	out := make([]models.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) publishLocked() {
	s.changes.Set(s.snapshot())
}
