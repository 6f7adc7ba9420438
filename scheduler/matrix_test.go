package scheduler

import (
	"testing"

	"github.com/lcl45/openseadragon/tile"
)

func TestMatrix_Bound(t *testing.T) {
	m := NewMatrix(2)
	a := &tile.Tile{Address: tile.Address{Level: 5, X: 0, Y: 0}}
	b := &tile.Tile{Address: tile.Address{Level: 5, X: 1, Y: 0}}
	c := &tile.Tile{Address: tile.Address{Level: 5, X: 2, Y: 0}}

	m.Add(a)
	m.Add(b)
	m.Add(c)
	if m.Len() != 2 {
		t.Errorf("Expected the bound held, but got %d", m.Len())
	}
	if _, ok := m.Get(a.Address); ok {
		t.Errorf("Expected the least recently touched tile evicted")
	}
	if got, ok := m.Get(c.Address); !ok || got != c {
		t.Errorf("Expected the newest tile resident")
	}

	m.Reset()
	if m.Len() != 0 {
		t.Errorf("Expected an empty matrix after reset, but got %d", m.Len())
	}
}
