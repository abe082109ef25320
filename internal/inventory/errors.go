package inventory

import (
	"fmt"
	"strings"
)

type ShortItem struct {
	SKU       string
	Available int
	Requested int
}

// InsufficientStockError itemized supaya UI bisa menunjukkan baris mana yang kurang.
type InsufficientStockError struct {
	Items []ShortItem
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("insufficient stock for %s: available=%d requested=%d",
			it.SKU, it.Available, it.Requested))
	}
	return strings.Join(parts, "; ")
}
