package client

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/VinMeld/complaint-portal/internal/models"
)

func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func courtsTable(courts []models.Court) string {
	rows := make([][]string, 0, len(courts))
	for _, c := range courts {
		rows = append(rows, []string{c.CourtName, c.CourtID})
	}
	return renderTable([]string{"Court", "ID"}, rows)
}

func attachmentsTable(atts []Attachment, poa *Attachment) string {
	rows := make([][]string, 0, len(atts)+1)
	for i, a := range atts {
		rows = append(rows, []string{strconv.Itoa(i), a.DisplayName, a.DisplaySize})
	}
	if poa != nil {
		rows = append(rows, []string{"POA", poa.DisplayName, poa.DisplaySize})
	}
	return renderTable([]string{"#", "File", "Size"}, rows, 3)
}

func reportTable(data []models.MonthlyReferralReport) string {
	rows := make([][]string, 0, len(data))
	for _, r := range data {
		rows = append(rows, []string{
			r.DepartmentName,
			strconv.Itoa(r.CurrentMonthTotal),
			strconv.Itoa(r.PreviousMonthTotal),
			percent(r.PercentChangeFromPrevMonth),
			strconv.Itoa(r.SameMonthLastYearTotal),
			percent(r.PercentChangeFromLastYear),
		})
	}
	return renderTable(
		[]string{"Department", "This month", "Prev month", "Δ prev", "Last year", "Δ year"},
		rows, 2, 3, 4, 5, 6,
	)
}

func percent(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64) + "%"
}
