package oireport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newBuilder(t *testing.T, f *excelize.File) *reportBuilder {
	t.Helper()
	geo, err := DefaultLayout().resolve()
	require.NoError(t, err)
	b := &reportBuilder{f: f, geo: geo, separators: make(map[int]int), log: zap.NewNop()}
	require.NoError(t, b.prepare())
	return b
}

func TestShiftFormulaRow(t *testing.T) {
	assert.Equal(t, "J10+K10", ShiftFormulaRow("J9+K9", 9, 10))
	assert.Equal(t, "SUM(J12:P12)/7", ShiftFormulaRow("SUM(J9:P9)/7", 9, 12))
	assert.Equal(t, "A9", ShiftFormulaRow("A9", 9, 9))
	// известное ограничение: цифры констант тоже заменяются
	assert.Equal(t, "J10*0.10", ShiftFormulaRow("J9*0.9", 9, 10))
}

func TestFindHeaderColumn(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "C8", "  ESTADO "))
	require.NoError(t, f.SetCellValue("Sheet1", "E8", "estado"))

	col, ok := FindHeaderColumn(f, "Sheet1", 8, "Estado")
	require.True(t, ok)
	assert.Equal(t, 3, col)

	_, ok = FindHeaderColumn(f, "Sheet1", 8, "# Medidor")
	assert.False(t, ok)
	_, ok = FindHeaderColumn(f, "Sheet1", 20, "Estado")
	assert.False(t, ok)
	_, ok = FindHeaderColumn(f, "missing", 8, "Estado")
	assert.False(t, ok)
}

// Стиль, которого нет в книге, не прерывает строку: ячейка уходит в faults.
func TestCloneStyles_FaultDoesNotAbortRow(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sid, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A9", "C9", sid))

	b := newBuilder(t, f)
	b.tpl.styles[2] = 9999
	b.cloneStyles(10)

	require.Len(t, b.faults, 1)
	assert.Equal(t, "B10", b.faults[0].Cell)
	assert.Contains(t, b.faults[0].String(), "B10")
	for _, cell := range []string{"A10", "C10"} {
		got, err := f.GetCellStyle("Sheet1", cell)
		require.NoError(t, err)
		assert.Equal(t, sid, got, cell)
	}
}

func TestCaptureRow_IgnoresLaterMutation(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellFormula("Sheet1", "AU9", "J9*2"))
	require.NoError(t, f.SetCellValue("Sheet1", "AV9", "=K9"))
	require.NoError(t, f.SetCellValue("Sheet1", "AW9", true))

	b := newBuilder(t, f)
	require.NoError(t, f.SetCellFormula("Sheet1", "AU9", "J9*3"))

	assert.Equal(t, "J9*2", b.tpl.cells[47].formula)
	assert.Equal(t, "K9", b.tpl.cells[48].formula)
	assert.Equal(t, excelize.CellTypeBool, b.tpl.cells[49].typ)

	require.NoError(t, b.replicateFormulas(10))
	got, err := f.GetCellFormula("Sheet1", "AU10")
	require.NoError(t, err)
	assert.Equal(t, "J10*2", got)
	v, err := f.GetCellValue("Sheet1", "AW10")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", v)
}

func TestPaintSeparator_ReusesDerivedStyle(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	b := newBuilder(t, f)

	b.paintSeparator(12)
	b.paintSeparator(20)
	assert.Empty(t, b.faults)
	assert.Len(t, b.separators, 1)

	a12, _ := f.GetCellStyle("Sheet1", "A12")
	bl20, _ := f.GetCellStyle("Sheet1", "BL20")
	assert.Equal(t, a12, bl20)
	st, err := f.GetStyle(a12)
	require.NoError(t, err)
	bottom := 0
	for _, br := range st.Border {
		if br.Type == "bottom" {
			bottom = br.Style
		}
	}
	assert.Equal(t, thickBorder, bottom)
}

func TestOpenWorkbook_Synthetic(t *testing.T) {
	geo, err := DefaultLayout().resolve()
	require.NoError(t, err)

	f, synthetic, err := openWorkbook(t.TempDir()+"/none.xlsx", nil, false, geo)
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, synthetic)

	sheet := f.GetSheetName(0)
	status, ok := FindHeaderColumn(f, sheet, geo.headerRow, "Estado")
	require.True(t, ok)
	meter, ok := FindHeaderColumn(f, sheet, geo.headerRow, "# Medidor")
	require.True(t, ok)
	for _, fixed := range []int{geo.item, geo.dateFrom, geo.dateTo, geo.facility, geo.operator, geo.pressure} {
		assert.NotEqual(t, fixed, status)
		assert.NotEqual(t, fixed, meter)
	}
	v, _ := f.GetCellValue(sheet, "BC2")
	assert.Equal(t, "6,3", v)
	v, _ = f.GetCellValue(sheet, "BE1")
	assert.Equal(t, "500", v)

	_, _, err = openWorkbook(t.TempDir()+"/none.xlsx", nil, true, geo)
	assert.ErrorIs(t, err, ErrTemplateMissing)

	_, _, err = openWorkbook("", []byte("not a zip"), false, geo)
	assert.Error(t, err)
}

func TestLocateColumns_ReportsUnreadableSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	b := newBuilder(t, f)
	b.sheet = "нет такого листа"

	err := b.locateColumns()
	require.Error(t, err)
	assert.Zero(t, b.statusCol)
}

func TestSheetWidth_CountsStyledCellsAndBands(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sid, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A9", "BN9", sid))
	require.NoError(t, f.SetCellValue("Sheet1", "A8", "Item"))

	b := newBuilder(t, f)
	b.geo.styleTo = 66 // BN
	b.tpl.styles[66] = sid
	require.NoError(t, b.locateColumns())
	assert.Equal(t, 67, b.statusCol)
	v, _ := f.GetCellValue("Sheet1", "BO8")
	assert.Equal(t, "Estado", v)
}

func TestCaptureRow_RecordsEmptyBandCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellFormula("Sheet1", "AU9", "J9*2"))
	require.NoError(t, f.SetCellValue("Sheet1", "AV10", "STALE"))
	require.NoError(t, f.SetCellValue("Sheet1", "A10", "keep"))

	b := newBuilder(t, f)
	assert.True(t, b.tpl.cells[48].clear)
	assert.False(t, b.tpl.cells[47].clear)

	require.NoError(t, b.replicateFormulas(10))
	v, _ := f.GetCellValue("Sheet1", "AV10")
	assert.Empty(t, v)
	v, _ = f.GetCellValue("Sheet1", "A10")
	assert.Equal(t, "keep", v)
}
