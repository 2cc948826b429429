// Package export renders reconciliation runs as Excel workbooks.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/iho/bankrecon/internal/domain"
)

// Sheet names, in workbook order.
const (
	SheetSummary     = "Resumen"
	SheetMatched     = "Conciliados"
	SheetOnlyExtract = "Solo extracto"
	SheetOverdue     = "Sistema vencido"
	SheetDeferred    = "Sistema diferido"
	SheetPending     = "Pendientes"
)

const (
	amountFormat = "#,##0.00"
	dateFormat   = "dd/mm/yyyy"
)

// XLSXExporter implements usecase.Exporter.
type XLSXExporter struct{}

// NewXLSXExporter creates a new XLSXExporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

type workbook struct {
	f      *excelize.File
	header int
	amount int
	date   int
}

// Export writes one sheet per result list plus a summary and the pending
// items grouped by area.
func (e *XLSXExporter) Export(ctx context.Context, run *domain.Run, areas domain.Areas) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	wb := &workbook{f: f}
	if err := wb.styles(); err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetMatched, SheetOnlyExtract, SheetOverdue, SheetDeferred, SheetPending} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
	}

	unmatchedExtract, unmatchedSystem := run.Unmatched()

	steps := []func() error{
		func() error { return wb.summary(run) },
		func() error { return wb.matched(run) },
		func() error { return wb.onlyExtract(run, unmatchedExtract) },
		func() error { return wb.unmatchedSystem(run, SheetOverdue, unmatchedSystem, domain.UnmatchedOverdue) },
		func() error { return wb.unmatchedSystem(run, SheetDeferred, unmatchedSystem, domain.UnmatchedDeferred) },
		func() error { return wb.pending(run, areas) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (wb *workbook) styles() error {
	var err error
	if wb.header, err = wb.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	}); err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	format := amountFormat
	if wb.amount, err = wb.f.NewStyle(&excelize.Style{CustomNumFmt: &format}); err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	dates := dateFormat
	if wb.date, err = wb.f.NewStyle(&excelize.Style{CustomNumFmt: &dates}); err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	return nil
}

// table writes a header row and the data rows below it. Columns listed in
// amountCols and dateCols get number formats.
func (wb *workbook) table(sheet string, headers []any, rows [][]any, amountCols, dateCols []int) error {
	if err := wb.f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := wb.f.SetCellStyle(sheet, "A1", last+"1", wb.header); err != nil {
		return err
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}

	lastRow := len(rows) + 1
	for _, cols := range []struct {
		idx   []int
		style int
	}{{amountCols, wb.amount}, {dateCols, wb.date}} {
		for _, c := range cols.idx {
			col, _ := excelize.ColumnNumberToName(c)
			if err := wb.f.SetCellStyle(sheet, col+"2", fmt.Sprintf("%s%d", col, lastRow), cols.style); err != nil {
				return err
			}
		}
	}
	return nil
}

func (wb *workbook) summary(run *domain.Run) error {
	s := run.Summary()
	excluded := 0
	for _, l := range run.ExtractLines {
		if l.Excluded {
			excluded++
		}
	}

	rows := [][]any{
		{"Título", run.Title},
		{"Banco", run.BankName},
		{"Cuenta", run.AccountRef},
		{"Fecha de corte", run.CutDate},
		{"Fecha de referencia", string(run.DateBasis)},
		{"Ventana (días)", run.WindowDays},
		{"Estado", string(run.Status)},
		{"Conciliados", s.Matched},
		{"Solo extracto", s.OnlyExtract},
		{"Sistema vencido", s.SystemOverdue},
		{"Sistema diferido", s.SystemDeferred},
		{"Movimientos excluidos", excluded},
		{"Conceptos excluidos", strings.Join(run.ExcludeConcepts, ", ")},
	}
	if err := wb.table(SheetSummary, []any{"Campo", "Valor"}, rows, nil, nil); err != nil {
		return err
	}
	// cut date
	return wb.f.SetCellStyle(SheetSummary, "B5", "B5", wb.date)
}

func (wb *workbook) matched(run *domain.Run) error {
	rows := make([][]any, 0, len(run.Matches))
	for _, m := range run.Matches {
		sys, ok := run.SystemLine(m.SystemLineID)
		if !ok {
			continue
		}

		var (
			dates    []string
			concepts []string
			total    = decimal.Zero
		)
		for _, id := range m.ExtractLineIDs {
			l, ok := run.ExtractLine(id)
			if !ok {
				continue
			}
			if l.Date != nil {
				dates = append(dates, l.Date.Format("02/01/2006"))
			}
			concepts = append(concepts, l.Concept)
			total = total.Add(l.Amount)
		}

		manual := "No"
		if m.Manual {
			manual = "Sí"
		}
		rows = append(rows, []any{
			dateCell(sys.RelevantDate(run.DateBasis)),
			sys.Description,
			sys.Amount.InexactFloat64(),
			strings.Join(dates, ", "),
			strings.Join(concepts, " | "),
			total.InexactFloat64(),
			m.DeltaDays,
			manual,
		})
	}

	headers := []any{"Fecha sistema", "Descripción", "Importe sistema", "Fechas extracto", "Conceptos", "Importe extracto", "Diferencia (días)", "Manual"}
	return wb.table(SheetMatched, headers, rows, []int{3, 6}, []int{1})
}

func (wb *workbook) onlyExtract(run *domain.Run, ids []string) error {
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		l, ok := run.ExtractLine(id)
		if !ok {
			continue
		}
		rows = append(rows, []any{dateCell(l.Date), l.Concept, l.Amount.InexactFloat64(), l.CategoryID})
	}
	return wb.table(SheetOnlyExtract, []any{"Fecha", "Concepto", "Importe", "Categoría"}, rows, []int{3}, []int{1})
}

func (wb *workbook) unmatchedSystem(run *domain.Run, sheet string, unmatched []domain.UnmatchedSystem, status domain.UnmatchedStatus) error {
	rows := [][]any{}
	for _, u := range unmatched {
		if u.Status != status {
			continue
		}
		l, ok := run.SystemLine(u.SystemLineID)
		if !ok {
			continue
		}
		area, pendingStatus := "", ""
		if p, ok := run.ActivePendingFor(l.ID); ok {
			area, pendingStatus = string(p.Area), string(p.Status)
		}
		rows = append(rows, []any{dateCell(l.IssueDate), dateCell(l.DueDate), l.Description, l.Amount.InexactFloat64(), area, pendingStatus})
	}
	headers := []any{"Emisión", "Vencimiento", "Descripción", "Importe", "Área", "Estado pendiente"}
	return wb.table(sheet, headers, rows, []int{4}, []int{1, 2})
}

func (wb *workbook) pending(run *domain.Run, areas domain.Areas) error {
	rows := [][]any{}
	for _, group := range run.PendingByArea(areas) {
		for _, pl := range group.Lines {
			rows = append(rows, []any{
				string(group.Area),
				string(pl.Item.Status),
				pl.Description,
				pl.Amount.InexactFloat64(),
				pl.DueDate,
				pl.Item.Note,
				pl.Item.CreatedByID,
				pl.Item.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	headers := []any{"Área", "Estado", "Descripción", "Importe", "Vencimiento", "Nota", "Creado por", "Creado"}
	return wb.table(SheetPending, headers, rows, []int{4}, nil)
}

// dateCell leaves unknown dates blank instead of writing the zero time.
func dateCell(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
