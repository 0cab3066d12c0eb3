package report

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"stockAlertsBot/internal/domain"
)

// WritePositionsToCSV exports ledger rows for spreadsheet review. Open
// positions get empty sale columns.
func WritePositionsToCSV(positions []*domain.Position, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"symbol", "name", "buy_price", "buy_time", "sale_price", "sale_time", "profit"})

	for _, p := range positions {
		salePrice, saleTime, profit := "", "", ""
		if !p.IsOpen() {
			salePrice = strconv.FormatFloat(p.SalePrice, 'f', -1, 64)
			saleTime = p.SaleTime.Format(time.RFC3339)
			profit = strconv.FormatFloat(p.Profit(), 'f', -1, 64)
		}
		writer.Write([]string{
			p.Symbol,
			p.Name,
			strconv.FormatFloat(p.BuyPrice, 'f', -1, 64),
			p.BuyTime.Format(time.RFC3339),
			salePrice,
			saleTime,
			profit,
		})
	}
	return writer.Error()
}
