// Package export renders ledger listings for administrators.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iho/pinledger/internal/domain"
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"Account", "Owner", "Balance", "Frozen"}

// WriteCSV writes one row per account in the order given. Balances are
// rendered with two decimals.
func WriteCSV(w io.Writer, accounts []domain.AccountView) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, a := range accounts {
		row := []string{
			strconv.FormatInt(a.ID, 10),
			a.Owner,
			a.Balance.StringFixed(2),
			strconv.FormatBool(a.Frozen),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for account %d: %w", a.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
