package domain

import (
	"strconv"

	"github.com/cesargomez89/streampay/internal/constants"
)

// Lamports is an integer amount of the native token's smallest unit.
// All ledger amounts are stored and computed in lamports.
type Lamports int64

// SOL converts to the display unit. Never use the result for arithmetic.
func (l Lamports) SOL() float64 {
	return float64(l) / constants.LamportsPerSOL
}

func (l Lamports) String() string {
	return strconv.FormatInt(int64(l), 10)
}

// Accrual computes the credit for streamCount settled streams at rate per
// stream, withholding feePercent of the gross amount for the platform.
// The fee rounds down so the artist never receives less than
// gross*(100-fee)/100.
func Accrual(streamCount int64, rate Lamports, feePercent int) (gross, fee, net Lamports) {
	gross = Lamports(streamCount) * rate
	fee = gross * Lamports(feePercent) / 100
	return gross, fee, gross - fee
}
