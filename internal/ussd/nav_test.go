package ussd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNav(t *testing.T) {
	n := nav[farmerState]{Level: farmerRoot}

	n.push(farmerListCrop)
	n.push(farmerListQuantity)
	assert.Equal(t, farmerListQuantity, n.Level)
	assert.Equal(t, []farmerState{farmerRoot, farmerListCrop}, n.Previous)

	n.back(farmerRoot)
	assert.Equal(t, farmerListCrop, n.Level)
	n.back(farmerRoot)
	assert.Equal(t, farmerRoot, n.Level)

	// never below root
	n.back(farmerRoot)
	n.back(farmerRoot)
	assert.Equal(t, farmerRoot, n.Level)
	assert.Empty(t, n.Previous)

	n.push(farmerPricesCrop)
	n.push(farmerPricesResult)
	n.home(farmerRoot)
	assert.Equal(t, farmerRoot, n.Level)
	assert.Empty(t, n.Previous)

	n.reset(farmerListCrop, farmerRoot)
	assert.Equal(t, farmerListCrop, n.Level)
	assert.Equal(t, []farmerState{farmerRoot}, n.Previous)
}
