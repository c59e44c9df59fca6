package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Results"

var xlsxHeader = []interface{}{"Query #", "Query", "Rank", "File", "Base Score", "Rerank Score", "Text"}

// WriteXLSX writes one row per ranked passage. Queries without results get
// a single row carrying the query and, if any, its error.
func WriteXLSX(path string, results []QueryResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &xlsxHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}

	row := 2
	for _, qr := range results {
		if len(qr.Results) == 0 {
			note := "no results"
			if qr.Err != nil {
				note = qr.Err.Error()
			}
			if err := setRow(f, row, []interface{}{qr.Index, qr.Query, nil, nil, nil, nil, note}); err != nil {
				return err
			}
			row++
			continue
		}
		for _, r := range qr.Results {
			values := []interface{}{qr.Index, qr.Query, r.Rank, r.Source, r.BaseScore, r.RerankScore, r.Text}
			if err := setRow(f, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 60); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "G", "G", 100); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}
