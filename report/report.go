/*
Package report renders a manager's yearly team balances as an XLSX workbook.

LAYOUT:
  Row 1:  title, merged across every column
  Row 2:  Name | Market | Process | Overtime | Overtime (h) | <daytype labels> | Calculated Holidays
  Row 3+: one row per enabled subordinate, ordered by last name

USAGE:
  gen := report.NewGenerator(engine, resolver, log)
  team, err := gen.TeamYear(ctx, manager, 2024)
  err = report.WriteXLSX(w, team)
*/
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Row is one subordinate's year.
type Row struct {
	User     tracker.User
	Overtime generic.Amount
	Balances map[string]int
}

type TeamReport struct {
	Manager tracker.User
	Year    int
	Rows    []Row
}

// Filename is the suggested download name.
func (r *TeamReport) Filename() string {
	return fmt.Sprintf("balances_%s_%d.xlsx", r.Manager.ID, r.Year)
}

type Generator struct {
	engine   *tracker.Engine
	resolver *tracker.Resolver
	log      *zap.Logger
}

func NewGenerator(engine *tracker.Engine, resolver *tracker.Resolver, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{engine: engine, resolver: resolver, log: log}
}

// TeamYear collects the overtime balance, daytype counts and holiday
// balance for every enabled subordinate of manager.
func (g *Generator) TeamYear(ctx context.Context, manager tracker.User, year int) (*TeamReport, error) {
	team, err := g.resolver.Subordinates(ctx, manager, false)
	if err != nil {
		return nil, fmt.Errorf("list team of %s: %w", manager.ID, err)
	}

	report := &TeamReport{Manager: manager, Year: year, Rows: make([]Row, 0, len(team))}
	for _, u := range team {
		overtime, err := g.engine.TotalBalance(ctx, u, generic.InYear(year))
		if err != nil {
			return nil, err
		}
		balances, err := g.engine.Balances(ctx, u, year)
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, Row{User: u, Overtime: overtime, Balances: balances})
	}

	g.log.Info("team report generated",
		zap.String("manager", string(manager.ID)),
		zap.Int("year", year),
		zap.Int("rows", len(report.Rows)),
	)
	return report, nil
}

// Columns returns the header row.
func Columns() []string {
	cols := []string{"Name", "Market", "Process", "Overtime", "Overtime (h)"}
	for _, d := range tracker.AllDaytypes() {
		cols = append(cols, d.Label())
	}
	return append(cols, tracker.CalculatedHolidaysLabel)
}

// WriteXLSX renders the report as a single-sheet workbook.
func WriteXLSX(w io.Writer, r *TeamReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(r.Year)
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	cols := Columns()
	last := colName(len(cols) - 1)
	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", last, 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	severityStyles := map[tracker.Severity]int{}
	for sev, color := range map[tracker.Severity]string{
		tracker.SeverityWarning: "#FFEB9C",
		tracker.SeverityDanger:  "#FFC7CE",
	} {
		id, _ := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}})
		severityStyles[sev] = id
	}

	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s: team balances %d", r.Manager.Name(), r.Year))
	f.MergeCell(sheet, "A1", cell(last, 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	for i, c := range cols {
		f.SetCellValue(sheet, cell(colName(i), 2), c)
	}
	f.SetCellStyle(sheet, "A2", cell(last, 2), headerStyle)

	for i, row := range r.Rows {
		n := i + 3
		values := []any{
			row.User.ReversedName(),
			row.User.Market,
			row.User.Process,
			tracker.DurationString(row.Overtime),
			row.Overtime.Value.Round(2).InexactFloat64(),
		}
		for _, d := range tracker.AllDaytypes() {
			values = append(values, row.Balances[d.Label()])
		}
		values = append(values, row.Balances[tracker.CalculatedHolidaysLabel])

		if err := f.SetSheetRow(sheet, cell("A", n), &values); err != nil {
			return fmt.Errorf("write row %d: %w", n, err)
		}
		if style, ok := severityStyles[tracker.Classify(row.Overtime)]; ok {
			f.SetCellStyle(sheet, cell("D", n), cell("E", n), style)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func SheetName(year int) string {
	return fmt.Sprintf("Balances %d", year)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
