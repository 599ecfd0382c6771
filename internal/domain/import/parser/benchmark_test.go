package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
	"time"
)

// generateCSVData creates test CSV data with specified row count
func generateCSVData(rows int) string {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write([]string{"Date", "Payee", "Memo", "Amount", "Category"})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		date := start.AddDate(0, 0, -i).Format("2006-01-02")
		payee := fmt.Sprintf("Merchant %d, Ltd", i%100)
		memo := fmt.Sprintf("Ref \"%d\"", i)
		amount := fmt.Sprintf("%.2f", float64(i%10000)/100.0)
		category := fmt.Sprintf("Category %d", i%10)
		writer.Write([]string{date, payee, memo, amount, category})
	}

	writer.Flush()
	return buf.String()
}

func BenchmarkParse(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		data := generateCSVData(size)

		b.Run(fmt.Sprintf("%d_rows", size), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				table := Parse(data, ',')
				if len(table.Rows) != size {
					b.Fatalf("expected %d rows, got %d", size, len(table.Rows))
				}
			}
		})
	}
}
