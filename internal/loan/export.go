package loan

import (
	"fmt"
	"strconv"
)

// ExportScheduleRows formats a schedule into CSV-ready strings.
func ExportScheduleRows(records []PeriodRecord) [][]string {
	out := make([][]string, 0, len(records)+1)
	header := []string{"Period", "Date", "Interest Accrued", "Interest Paid", "Principal Paid", "Lumpsum", "Ending Principal", "Ending Simple Interest"}
	out = append(out, header)
	for _, record := range records {
		out = append(out, []string{
			strconv.Itoa(record.Period),
			record.Date.Format("2006-01-02"),
			fmt.Sprintf("%.2f", record.InterestAccrued),
			fmt.Sprintf("%.2f", record.InterestPaid),
			fmt.Sprintf("%.2f", record.PrincipalPaid),
			fmt.Sprintf("%.2f", record.Lumpsum),
			fmt.Sprintf("%.2f", record.EndingPrincipal),
			fmt.Sprintf("%.2f", record.EndingSimpleInterest),
		})
	}
	return out
}
