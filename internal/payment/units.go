package payment

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ToSmallestUnit converts a decimal token price into the token's integer unit,
// truncating any digits beyond decimals. The price goes through its shortest
// decimal string so 0.1 becomes 100000 and not 99999.
func ToSmallestUnit(price float64, decimals int) (*big.Int, error) {
	if price < 0 {
		return nil, fmt.Errorf("negative price %v", price)
	}
	s := strconv.FormatFloat(price, 'f', -1, 64)

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("cannot convert price %v", price)
	}
	return out, nil
}

// FormatUnits renders an integer amount as a decimal string with at least two
// fractional digits: 500000 at 6 decimals is "0.50", 1234567 is "1.234567".
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	neg := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()

	if decimals > 0 {
		if len(digits) <= decimals {
			digits = strings.Repeat("0", decimals-len(digits)+1) + digits
		}
		whole := digits[:len(digits)-decimals]
		frac := strings.TrimRight(digits[len(digits)-decimals:], "0")
		for len(frac) < 2 {
			frac += "0"
		}
		digits = whole + "." + frac
	} else {
		digits += ".00"
	}

	if neg {
		return "-" + digits
	}
	return digits
}
