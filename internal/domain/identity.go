package domain

import (
	"fmt"
	"strings"
)

// Identity is the logical stock-keeping unit. Several inventory rows may
// share one identity.
type Identity struct {
	Store   StoreRef `json:"store"`
	Product string   `json:"product"`
	Color   string   `json:"color"`
	Storage Storage  `json:"storage"`
}

func NewIdentity(store StoreRef, product string, color string, storage Storage) Identity {
	return Identity{
		Store:   store,
		Product: strings.TrimSpace(product),
		Color:   strings.TrimSpace(color),
		Storage: storage,
	}
}

// NormalizeName lowercases and collapses whitespace. Every product and color
// comparison, on the read side and the write side, goes through it.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func LineKey(product string, color string, storage Storage) string {
	return NormalizeName(product) + "|" + NormalizeName(color) + "|" + storage.Key()
}

func (id Identity) Key() string {
	return LineKey(id.Product, id.Color, id.Storage)
}

// LockKey scopes Key to the store.
func (id Identity) LockKey() string {
	return id.Store.Name + "\x00" + id.Store.Location + "\x00" + id.Key()
}

func (id Identity) Matches(row InventoryRow) bool {
	return row.StoreName == id.Store.Name &&
		row.StoreLocation == id.Store.Location &&
		NormalizeName(row.Product) == NormalizeName(id.Product) &&
		NormalizeName(row.Color) == NormalizeName(id.Color) &&
		id.Storage.Equal(row.Storage)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %s %s at %s", id.Product, id.Color, id.Storage.Label(), id.Store.Label())
}
