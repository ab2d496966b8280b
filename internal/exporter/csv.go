package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// buildCSV 价目表模式的 CSV 导出
//
// 没有工作簿原件可作模板，产出纯文本报价：抬头字段、行明细、合计三段。
func buildCSV(req Request) (*Export, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if req.Details != nil {
		header := []struct{ label, value string }{
			{"Client", req.Details.ClientName},
			{"Company", req.Details.CompanyName},
			{"Email", req.Details.Email},
			{"Date", req.Details.QuoteDate},
			{"Notes", req.Details.Notes},
		}
		for _, h := range header {
			if h.value == "" {
				continue
			}
			if err := w.Write([]string{h.label, h.value}); err != nil {
				return nil, fmt.Errorf("write header: %w", err)
			}
		}
		if err := w.Write([]string{}); err != nil {
			return nil, fmt.Errorf("write separator: %w", err)
		}
	}

	if err := w.Write([]string{"Segment", req.Segment}); err != nil {
		return nil, fmt.Errorf("write segment: %w", err)
	}
	if err := w.Write([]string{"Price tier", req.PriceTier}); err != nil {
		return nil, fmt.Errorf("write tier: %w", err)
	}
	if err := w.Write([]string{}); err != nil {
		return nil, fmt.Errorf("write separator: %w", err)
	}

	if err := w.Write([]string{"Service", "Billing", "Type", "Selected", "Quantity", "Unit Price", "Line Total"}); err != nil {
		return nil, fmt.Errorf("write columns: %w", err)
	}
	for _, line := range req.Result.Lines {
		selected := "No"
		if line.Selected {
			selected = "Yes"
		}
		record := []string{
			line.Name,
			line.BillingLabel,
			line.TypeLabel,
			selected,
			money(line.Quantity),
			money(line.EffectivePrice),
			money(line.LineTotal),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write line: %w", err)
		}
	}

	totals := req.Result.Totals
	if err := w.Write([]string{}); err != nil {
		return nil, fmt.Errorf("write separator: %w", err)
	}
	rows := [][]string{
		{"Monthly subtotal", money(totals.MonthlySubtotal)},
		{"One-time subtotal", money(totals.OneTimeSubtotal)},
	}
	if totals.MaintenanceSubtotal != nil {
		rows = append(rows, []string{"Maintenance subtotal", money(*totals.MaintenanceSubtotal)})
	}
	rows = append(rows,
		[]string{"Grand total (month one)", money(totals.GrandTotalMonthOne)},
		[]string{"Ongoing monthly", money(totals.OngoingMonthly)},
	)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write totals: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Export{
		Filename: exportFilename(req.Details, "csv"),
		MimeType: "text/csv",
		Data:     buf.Bytes(),
	}, nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
