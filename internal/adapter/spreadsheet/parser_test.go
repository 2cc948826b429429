package spreadsheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iho/bankrecon/internal/domain"
)

func workbook(t *testing.T) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetName("Sheet1", "Extracto"))
	require.NoError(t, f.SetSheetRow("Extracto", "A1", &[]any{"Banco Ejemplo - Movimientos"}))
	require.NoError(t, f.SetSheetRow("Extracto", "A2", &[]any{"Fecha", "Concepto", "Importe", ""}))
	require.NoError(t, f.SetSheetRow("Extracto", "A3", &[]any{45301, "Transferencia cliente", 100.5, "x"}))
	require.NoError(t, f.SetSheetRow("Extracto", "A5", &[]any{45303, "Deposito", 60}))

	_, err := f.NewSheet("Sistema")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sistema", "A1", &[]any{"Vencimiento", "Detalle", "Monto"}))
	require.NoError(t, f.SetSheetRow("Sistema", "A2", &[]any{"2024-01-10", "Factura 1", 100}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseWorkbook(t *testing.T) {
	res, err := Parse(workbook(t), "movimientos.xlsx", Options{HeaderRow: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"Extracto", "Sistema"}, res.Sheets)
	assert.Equal(t, "Extracto", res.Sheet)
	require.Len(t, res.Rows, 2, "blank row 4 is skipped")

	first := res.Rows[0]
	assert.Equal(t, "45301", first["Fecha"])
	assert.Equal(t, "Transferencia cliente", first["Concepto"])
	assert.Equal(t, "100.5", first["Importe"])
	assert.Equal(t, "x", first["Column D"])
}

func TestParseWorkbookSelectsSheet(t *testing.T) {
	res, err := Parse(workbook(t), "libro.XLSX", Options{Sheet: "Sistema", HeaderRow: 1})
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Factura 1", res.Rows[0]["Detalle"])

	_, err = Parse(workbook(t), "libro.xlsx", Options{Sheet: "Otra"})
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "comma", input: "Fecha,Concepto,Importe\n10/01/2024,Transferencia,\"1.234,50\"\n"},
		{name: "semicolon with BOM", input: "\xef\xbb\xbfFecha;Concepto;Importe\n10/01/2024;Transferencia;1.234,50\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(strings.NewReader(tt.input), "extracto.csv", Options{})
			require.NoError(t, err)

			require.Len(t, res.Rows, 1)
			assert.Equal(t, "10/01/2024", res.Rows[0]["Fecha"])
			assert.Equal(t, "1.234,50", res.Rows[0]["Importe"])
		})
	}
}

func TestParseDuplicateHeaders(t *testing.T) {
	res, err := Parse(strings.NewReader("Monto,Monto,\n1,2,3\n"), "a.csv", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Monto", "Monto_2", "Column C"}, res.Columns)
	assert.Equal(t, domain.RawRow{"Monto": "1", "Monto_2": "2", "Column C": "3"}, res.Rows[0])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n"), "data.ods", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse(strings.NewReader("a,b\n1,2\n"), "data.csv", Options{HeaderRow: 5})
	assert.ErrorIs(t, err, ErrHeaderRow)

	_, err = Parse(strings.NewReader("not a zip"), "data.xlsx", Options{})
	assert.True(t, IsParseError(err))
	assert.False(t, IsParseError(errors.New("disk full")))
}
