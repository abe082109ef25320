package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockError_Itemized(t *testing.T) {
	err := &InsufficientStockError{Items: []ShortItem{
		{SKU: "TSHIRT-M", Available: 1, Requested: 3},
		{SKU: "TSHIRT-L", Available: 0, Requested: 1},
	}}
	assert.Equal(t,
		"insufficient stock for TSHIRT-M: available=1 requested=3; insufficient stock for TSHIRT-L: available=0 requested=1",
		err.Error())
}
