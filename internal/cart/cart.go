// Package cart holds the single-store cart rules. Every operation takes a
// cart and returns a new one; the input is never modified and nothing is
// persisted here.
package cart

import (
	"strings"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
)

// DefaultKey is the blob key used when the caller has no session of its own.
const DefaultKey = "app_cart"

func New() domain.Cart {
	return domain.Cart{Items: []domain.CartLine{}}
}

// AddLine merges line into the cart, or appends it when its key is new.
// An empty cart binds to store; a bound cart rejects any other store.
func AddLine(c domain.Cart, store domain.StoreRef, line domain.CartLine) (domain.Cart, error) {
	if strings.TrimSpace(store.Name) == "" || strings.TrimSpace(store.Location) == "" {
		return c, apperror.NewValidation("store name and location are required")
	}
	if strings.TrimSpace(line.Product) == "" || strings.TrimSpace(line.Color) == "" {
		return c, apperror.NewValidation("product and color are required")
	}
	if line.Quantity <= 0 {
		return c, apperror.NewValidation("quantity must be greater than zero")
	}
	if len(c.Items) > 0 && c.Store != nil && !c.Store.Equal(store) {
		return c, apperror.NewCrossStore(*c.Store, store)
	}

	next := clone(c)
	bound := store
	next.Store = &bound

	key := domain.LineKey(line.Product, line.Color, line.Storage)
	for i := range next.Items {
		if next.Items[i].Key == key {
			next.Items[i].Quantity += line.Quantity
			return next, nil
		}
	}

	next.Items = append(next.Items, domain.CartLine{
		Key:      key,
		Product:  strings.TrimSpace(line.Product),
		Color:    strings.TrimSpace(line.Color),
		Storage:  line.Storage,
		Quantity: line.Quantity,
	})
	return next, nil
}

// SetQuantity clamps quantity at zero and drops the line when it reaches
// zero. Unknown keys leave the cart as it was.
func SetQuantity(c domain.Cart, key string, quantity int) domain.Cart {
	if quantity <= 0 {
		return RemoveLine(c, key)
	}
	next := clone(c)
	for i := range next.Items {
		if next.Items[i].Key == key {
			next.Items[i].Quantity = quantity
			break
		}
	}
	return next
}

func RemoveLine(c domain.Cart, key string) domain.Cart {
	next := clone(c)
	kept := next.Items[:0]
	for _, item := range next.Items {
		if item.Key != key {
			kept = append(kept, item)
		}
	}
	next.Items = kept
	if len(next.Items) == 0 {
		next.Store = nil
	}
	return next
}

func Clear() domain.Cart {
	return New()
}

func Find(c domain.Cart, key string) (domain.CartLine, bool) {
	for _, item := range c.Items {
		if item.Key == key {
			return item, true
		}
	}
	return domain.CartLine{}, false
}

func TotalQuantity(c domain.Cart) int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Normalize repairs a cart read from storage: keys are recomputed, duplicate
// keys merged, non-positive lines dropped and the store cleared when no line
// is left. A cart with lines but no store cannot be trusted and is emptied.
func Normalize(c domain.Cart) domain.Cart {
	if c.Store == nil {
		return New()
	}

	out := domain.Cart{Items: make([]domain.CartLine, 0, len(c.Items))}
	index := make(map[string]int, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity <= 0 || strings.TrimSpace(item.Product) == "" {
			continue
		}
		item.Key = domain.LineKey(item.Product, item.Color, item.Storage)
		if pos, ok := index[item.Key]; ok {
			out.Items[pos].Quantity += item.Quantity
			continue
		}
		index[item.Key] = len(out.Items)
		out.Items = append(out.Items, item)
	}
	if len(out.Items) > 0 {
		store := *c.Store
		out.Store = &store
	}
	return out
}

func clone(c domain.Cart) domain.Cart {
	next := domain.Cart{Items: make([]domain.CartLine, len(c.Items))}
	copy(next.Items, c.Items)
	if c.Store != nil {
		store := *c.Store
		next.Store = &store
	}
	return next
}
