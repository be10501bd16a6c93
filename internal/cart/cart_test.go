package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

var (
	printer = models.Product{ID: 1, Name: "Prusa i3 MK4", Price: 1299.99}
	resin   = models.Product{ID: 2, Name: "Form 3B", Price: 3499.99}
)

func TestStore_AddMergesSameProduct(t *testing.T) {
	s := New()

	s.Add(printer, 2)
	s.Add(printer, 3)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestStore_AddIgnoresNonPositiveQuantity(t *testing.T) {
	s := New()

	s.Add(printer, 0)
	s.Add(printer, -1)

	assert.Empty(t, s.Items())
}

func TestStore_Total(t *testing.T) {
	s := New()
	assert.Equal(t, 0.0, s.Total())

	s.Add(printer, 2)
	s.Add(resin, 1)

	assert.InDelta(t, 2*1299.99+3499.99, s.Total(), 0.001)
}

func TestStore_UpdateQuantity(t *testing.T) {
	s := New()
	s.Add(printer, 2)

	s.UpdateQuantity(printer.ID, 7)
	assert.Equal(t, 7, s.Items()[0].Quantity)

	// Negative quantities clamp to zero.
	s.UpdateQuantity(printer.ID, -5)
	assert.Equal(t, 0, s.Items()[0].Quantity)

	// Unknown products are ignored.
	s.UpdateQuantity(999, 3)
	require.Len(t, s.Items(), 1)
}

func TestStore_Remove(t *testing.T) {
	s := New()
	s.Add(printer, 1)
	s.Add(resin, 1)

	s.Remove(printer.ID)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, resin.ID, items[0].Product.ID)
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Add(printer, 1)

	s.Clear()

	assert.Empty(t, s.Items())
	assert.Equal(t, 0.0, s.Total())
}

func TestStore_ItemsReturnsSnapshot(t *testing.T) {
	s := New()
	s.Add(printer, 1)

	items := s.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestStore_WatchBroadcastsMutations(t *testing.T) {
	s := New()

	ch, cancel := s.Watch().Subscribe()
	defer cancel()
	<-ch // initial (empty) contents

	s.Add(printer, 2)

	got := <-ch
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Quantity)

	s.Clear()
	assert.Empty(t, <-ch)
}
