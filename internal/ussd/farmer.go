package ussd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/session"
)

type farmerState string

const (
	farmerRoot         farmerState = "root"
	farmerPricesCrop   farmerState = "prices_crop_select"
	farmerPricesResult farmerState = "prices_result"
	farmerListCrop     farmerState = "list_crop_select"
	farmerListQuantity farmerState = "list_quantity_entry"
)

// FarmerMemory is the persisted state of a farmer session.
type FarmerMemory struct {
	nav[farmerState]
	Crop string `json:"crop,omitempty"`
}

func newFarmerMemory() FarmerMemory {
	return FarmerMemory{nav: nav[farmerState]{Level: farmerRoot}}
}

type farmerFlow struct {
	market  Market
	account *entity.Account
	mem     FarmerMemory
}

func (f *farmerFlow) flow() session.Flow { return session.FlowFarmer }
func (f *farmerFlow) memory() any        { return f.mem }

func (f *farmerFlow) step(ctx context.Context, input string) (reply, error) {
	m := &f.mem
	if m.Level == farmerRoot {
		switch input {
		case "1":
			m.push(farmerPricesCrop)
		case "2":
			m.push(farmerListCrop)
		case inputHome:
			m.home(farmerRoot)
		case inputBack:
			m.back(farmerRoot)
		default:
			return end(msgInvalidOption + "."), nil
		}
		return f.render(ctx)
	}

	switch input {
	case inputBack:
		m.back(farmerRoot)
		return f.render(ctx)
	case inputHome:
		m.home(farmerRoot)
		return f.render(ctx)
	}

	switch m.Level {
	case farmerPricesCrop:
		crop, ok := cropChoice(input)
		if !ok {
			return end(msgInvalidCrop), nil
		}
		m.Crop = crop
		m.push(farmerPricesResult)
		return f.render(ctx)

	case farmerPricesResult:
		return end(msgInvalidOption), nil

	case farmerListCrop:
		crop, ok := cropChoice(input)
		if !ok {
			return end("Invalid crop option."), nil
		}
		m.Crop = crop
		m.push(farmerListQuantity)
		return f.render(ctx)

	case farmerListQuantity:
		return f.listProduce(ctx, input)
	}
	return reply{}, fmt.Errorf("unknown farmer level %q", m.Level)
}

func (f *farmerFlow) listProduce(ctx context.Context, input string) (reply, error) {
	m := &f.mem
	qty, err := strconv.ParseFloat(input, 64)
	if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) || qty <= 0 {
		return withNav("Invalid quantity. Enter a number above 0 for %s:", m.Crop), nil
	}

	receipt, err := f.market.ListProduce(ctx, f.account, m.Crop, qty)
	if errors.Is(err, service.ErrNoMarketPrice) {
		return withNav("No market price for %s in %s. Try another crop or contact support.",
			m.Crop, f.market.Region(f.account.Location)), nil
	}
	if err != nil {
		return reply{}, err
	}

	m.reset(farmerListCrop, farmerRoot)
	return withNav("You have listed %s KG of %s at %s MWK/kg. Total: %s MWK.",
		entity.FormatQuantity(receipt.Listing.Quantity), receipt.Listing.CropName,
		entity.FormatAmount(receipt.PricePerUnit), entity.FormatAmount(receipt.Total)), nil
}

func (f *farmerFlow) render(ctx context.Context) (reply, error) {
	m := &f.mem
	switch m.Level {
	case farmerRoot:
		return con(farmerMenu), nil
	case farmerPricesCrop:
		return cropMenu(titlePricesCrop), nil
	case farmerPricesResult:
		prices, err := f.market.Prices(ctx, m.Crop)
		if err != nil {
			return reply{}, err
		}
		return pricesScreen(m.Crop, prices), nil
	case farmerListCrop:
		return cropMenu(titleListCrop), nil
	case farmerListQuantity:
		return withNav("Enter quantity in KG for %s:", m.Crop), nil
	}
	return reply{}, fmt.Errorf("unknown farmer level %q", m.Level)
}
