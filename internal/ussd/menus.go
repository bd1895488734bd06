package ussd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

const (
	navFooter = "\n0. Back\n00. Main menu"

	msgInvalidPhone    = "Invalid phone number format. Use 254XXXXXXXXX."
	msgSessionError    = "Session error"
	msgRoleUnsupported = "Role not supported."
	msgInvalidOption   = "Invalid option"
	msgInvalidCrop     = "Invalid crop selection"
	msgInvalidChoice   = "Invalid selection"

	farmerMenu     = "Welcome to MlimiZone Farmers\n1. See market prices\n2. List your produce\n00. Main menu"
	wholesalerMenu = "Welcome to MlimiZone Wholesaler\n1. See market prices\n2. Book produce\n3. Pay for orders\n00. Main menu"

	titlePricesCrop = "Select crop for market prices:"
	titleListCrop   = "Select crop to list:"
	titleBookCrop   = "Which crop do you want to book?"
)

// reply is one screen. end closes the session.
type reply struct {
	text string
	end  bool
}

func con(format string, args ...any) reply {
	return reply{text: fmt.Sprintf(format, args...)}
}

func end(format string, args ...any) reply {
	return reply{text: fmt.Sprintf(format, args...), end: true}
}

// withNav appends the back/main-menu footer.
func withNav(format string, args ...any) reply {
	return reply{text: fmt.Sprintf(format, args...) + navFooter}
}

func cropMenu(title string) reply {
	var b strings.Builder
	b.WriteString(title)
	for i, c := range repository.DefaultCrops {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c)
	}
	return reply{text: b.String() + navFooter}
}

// cropChoice maps a 1-based menu entry to a crop name.
func cropChoice(input string) (string, bool) {
	i, ok := menuIndex(input, len(repository.DefaultCrops))
	if !ok {
		return "", false
	}
	return repository.DefaultCrops[i], true
}

// menuIndex parses a 1-based selection into a 0-based index below n.
func menuIndex(input string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func pricesScreen(crop string, prices []entity.MarketPrice) reply {
	if len(prices) == 0 {
		return withNav("No prices available for %s.", crop)
	}
	lines := make([]string, len(prices))
	for i, p := range prices {
		lines[i] = fmt.Sprintf("%s: %s %s MWK", p.CropName, p.Region, entity.FormatAmount(p.PricePerUnit))
	}
	return withNav("Prices for %s:\n%s", crop, strings.Join(lines, "\n"))
}
