package oireport

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Заполнение шаблона отчёта поверки.
// Конвейер одного вызова: загрузка -> ячейки списков (E4/O4) -> колонки заголовка ->
// строки стендов (значения, формулы, стили, разделитель) -> защита -> байты.
// Шаблон открывается заново на каждый вызов и обратно не записывается.

// thickBorder — код толстой линии в excelize.
const thickBorder = 5

// rowTpl описывает строку-образец (первая строка данных): стили, формулы/значения полосы, высоту.
// Снимается до любых изменений листа, поэтому разделители записей не попадают в копии.
type rowTpl struct {
	height float64
	styles map[int]int
	cells  map[int]bandCell
}

type bandCell struct {
	formula string // без ведущего "="
	value   string
	typ     excelize.CellType
	clear   bool // пустая ячейка образца: в копиях ячейка очищается
}

// reportBuilder владеет книгой на протяжении одного вызова Generate.
type reportBuilder struct {
	f          *excelize.File
	sheet      string
	geo        geometry
	synthetic  bool
	tpl        rowTpl
	statusCol  int
	meterCol   int
	nonAnchor  map[string]struct{}
	separators map[int]int // стиль -> тот же стиль с толстой нижней границей
	faults     []CellFault
	log        *zap.Logger
}

// -----------------------------
// Загрузка
// -----------------------------

// openWorkbook открывает шаблон из байтов или с диска. Если файла нет и режим
// не строгий, возвращает синтетический документ и synthetic=true.
func openWorkbook(path string, data []byte, strict bool, geo geometry) (*excelize.File, bool, error) {
	if data != nil {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, false, fmt.Errorf("чтение шаблона: %w", err)
		}
		return f, false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("шаблон %s: %w", path, err)
		}
		if strict {
			return nil, false, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		f, err := syntheticTemplate(geo)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("открытие шаблона %s: %w", path, err)
	}
	return f, false, nil
}

// syntheticTemplate — минимальная книга для тестовых окружений: строка заголовка
// и списки Q3/Alcance из справочника.
func syntheticTemplate(geo geometry) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	used := map[int]bool{
		geo.item: true, geo.dateFrom: true, geo.dateTo: true,
		geo.facility: true, geo.operator: true, geo.pressure: true,
	}
	for _, start := range []int{geo.q3Col, geo.q2Col, geo.q1Col} {
		for i := 0; i < BlockWidth; i++ {
			used[start+i] = true
		}
	}
	headers := map[int]string{geo.item: "Item", geo.pressure: "Presión"}
	if geo.meterHeader != "" {
		headers[freeColumn(geo.operator+1, used)] = geo.meterHeader
	}
	headers[freeColumn(geo.pressure+1, used)] = geo.statusHeader
	for col, h := range headers {
		addr, _ := excelize.CoordinatesToCellName(col, geo.headerRow)
		if err := f.SetCellValue(sheet, addr, h); err != nil {
			return nil, err
		}
	}
	cat := Catalog()
	q3Cells, _ := rangeCells(geo.q3Range)
	for i, addr := range q3Cells {
		if i >= len(cat.Q3) {
			break
		}
		s, _ := NormalizeListValue(cat.Q3[i])
		if err := f.SetCellValue(sheet, addr, s); err != nil {
			return nil, err
		}
	}
	alcCells, _ := rangeCells(geo.alcanceRange)
	for i, addr := range alcCells {
		if i >= len(cat.Alcance) {
			break
		}
		if err := f.SetCellValue(sheet, addr, cat.Alcance[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// freeColumn возвращает первую незанятую колонку начиная с from и занимает её.
func freeColumn(from int, used map[int]bool) int {
	col := from
	for used[col] {
		col++
	}
	used[col] = true
	return col
}

// resolveSheet — целевой лист по имени, иначе первый лист книги.
func resolveSheet(f *excelize.File, name string) string {
	list := f.GetSheetList()
	for _, s := range list {
		if s == name {
			return s
		}
	}
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// prepare выбирает лист, собирает карту слияний и снимает строку-образец.
func (b *reportBuilder) prepare() error {
	b.sheet = resolveSheet(b.f, b.geo.sheet)
	if b.sheet == "" {
		return errors.New("в шаблоне нет листов")
	}
	merges, err := b.f.GetMergeCells(b.sheet)
	if err != nil {
		return fmt.Errorf("слияния листа %s: %w", b.sheet, err)
	}
	b.nonAnchor = make(map[string]struct{})
	for _, m := range merges {
		c1, r1, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			continue
		}
		for r := r1; r <= r2; r++ {
			for c := c1; c <= c2; c++ {
				if r == r1 && c == c1 {
					continue
				}
				addr, _ := excelize.CoordinatesToCellName(c, r)
				b.nonAnchor[addr] = struct{}{}
			}
		}
	}
	return b.captureRow(b.geo.dataRow)
}

func (b *reportBuilder) captureRow(row int) error {
	rt := rowTpl{styles: make(map[int]int), cells: make(map[int]bandCell)}
	if h, err := b.f.GetRowHeight(b.sheet, row); err == nil {
		rt.height = h
	}
	for col := b.geo.styleFrom; col <= b.geo.styleTo; col++ {
		addr, _ := excelize.CoordinatesToCellName(col, row)
		sid, err := b.f.GetCellStyle(b.sheet, addr)
		if err != nil {
			b.fault(addr, err)
			continue
		}
		if sid != 0 {
			rt.styles[col] = sid
		}
	}
	for col := b.geo.formulaFrom; col <= b.geo.formulaTo; col++ {
		addr, _ := excelize.CoordinatesToCellName(col, row)
		formula, err := b.f.GetCellFormula(b.sheet, addr)
		if err != nil {
			return fmt.Errorf("формула %s: %w", addr, err)
		}
		if formula != "" {
			rt.cells[col] = bandCell{formula: strings.TrimPrefix(formula, "=")}
			continue
		}
		v, err := b.f.GetCellValue(b.sheet, addr, excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("значение %s: %w", addr, err)
		}
		if strings.HasPrefix(v, "=") {
			rt.cells[col] = bandCell{formula: strings.TrimPrefix(v, "=")}
			continue
		}
		if v == "" {
			rt.cells[col] = bandCell{clear: true}
			continue
		}
		typ, _ := b.f.GetCellType(b.sheet, addr)
		rt.cells[col] = bandCell{value: v, typ: typ}
	}
	b.tpl = rt
	return nil
}

func (b *reportBuilder) close() {
	if err := b.f.Close(); err != nil {
		b.log.Warn("⚠️ Ошибка закрытия книги", zap.Error(err))
	}
}

// -----------------------------
// Заголовок: ячейки списков и колонки
// -----------------------------

// populateTargets записывает Q3 и Alcance значениями из списков самого шаблона.
// Если точного совпадения нет — LookupError, лист не меняется.
func (b *reportBuilder) populateTargets(order InspectionOrder) error {
	q3, err := b.lookup("Q3", b.geo.q3Range, b.geo.q3Cell, order.Q3)
	if err != nil {
		return err
	}
	alcance, err := b.lookup("Alcance", b.geo.alcanceRange, b.geo.alcanceCell, order.Alcance)
	if err != nil {
		return err
	}
	if err := b.f.SetCellValue(b.sheet, b.geo.q3Cell, q3); err != nil {
		return err
	}
	return b.f.SetCellValue(b.sheet, b.geo.alcanceCell, alcance)
}

func (b *reportBuilder) lookup(field, ref, target string, desired interface{}) (string, error) {
	cells, err := rangeCells(ref)
	if err != nil {
		return "", err
	}
	candidates := make([]string, 0, len(cells))
	for _, addr := range cells {
		v, err := b.f.GetCellValue(b.sheet, addr, excelize.Options{RawCellValue: true})
		if err != nil {
			return "", fmt.Errorf("список %s, ячейка %s: %w", ref, addr, err)
		}
		candidates = append(candidates, v)
	}
	m, ok := MatchInList(candidates, desired)
	if !ok {
		return "", &LookupError{Field: field, Cell: target, Range: ref, Value: desired}
	}
	return m, nil
}

// FindHeaderColumn ищет колонку (1-based) по тексту в строке row: без учёта
// регистра и пробелов по краям. Возвращает первую подходящую.
// Лист, который не читается, считается листом без такого заголовка.
func FindHeaderColumn(f *excelize.File, sheet string, row int, header string) (int, bool) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, false
	}
	return headerColumn(rows, row, header)
}

func headerColumn(rows [][]string, row int, header string) (int, bool) {
	if row < 1 || len(rows) < row {
		return 0, false
	}
	target := strings.TrimSpace(header)
	for i, v := range rows[row-1] {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i + 1, true
		}
	}
	return 0, false
}

// locateColumns находит колонки статуса и счётчика; статус дописывается в конец заголовка, если его нет.
func (b *reportBuilder) locateColumns() error {
	rows, err := b.f.GetRows(b.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("строка заголовка листа %s: %w", b.sheet, err)
	}
	col, ok := headerColumn(rows, b.geo.headerRow, b.geo.statusHeader)
	if !ok {
		width, err := b.sheetWidth(rows)
		if err != nil {
			return err
		}
		col = width + 1
		if err := b.set(col, b.geo.headerRow, b.geo.statusHeader); err != nil {
			return err
		}
		b.log.Debug("Колонка статуса добавлена", zap.Int("col", col))
	}
	b.statusCol = col
	if b.geo.meterHeader != "" {
		if c, ok := headerColumn(rows, b.geo.headerRow, b.geo.meterHeader); ok {
			b.meterCol = c
		}
	}
	return nil
}

// sheetWidth — последняя занятая колонка листа. Учитывает ячейки только со стилем
// (их нет в GetRows), размер листа из его dimension и полосы формул и стилей.
func (b *reportBuilder) sheetWidth(rows [][]string) (int, error) {
	width := max(b.geo.styleTo, b.geo.formulaTo)
	for _, r := range rows {
		width = max(width, len(r))
	}
	dim, err := b.f.GetSheetDimension(b.sheet)
	if err != nil {
		return 0, fmt.Errorf("размер листа %s: %w", b.sheet, err)
	}
	if _, last, ok := strings.Cut(dim, ":"); ok {
		if col, _, err := excelize.CellNameToCoordinates(last); err == nil {
			width = max(width, col)
		}
	}
	for col := range b.tpl.styles {
		width = max(width, col)
	}
	return width, nil
}

// -----------------------------
// Строки стендов
// -----------------------------

// writeRecords пишет строки всех записей подряд, начиная со строки данных.
// Курсор строк и номер Item сквозные для всего документа. Возвращает число строк.
func (b *reportBuilder) writeRecords(order InspectionOrder, records []TestBenchRecord, today string) (int, error) {
	sorted := make([]TestBenchRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Item < sorted[j].Item })

	pressure, hasPressure := PressureFor(order.PMA)
	cursor := b.geo.dataRow
	item := 1
	for _, rec := range sorted {
		n := RowCount(rec)
		if n == 0 {
			continue
		}
		for k := 0; k < n; k++ {
			row := cursor + k
			var p RowPayload
			if k < len(rec.Rows) {
				p = rec.Rows[k]
			}
			if err := b.writeRow(row, item, rec, p, order, today, pressure, hasPressure); err != nil {
				return 0, fmt.Errorf("bancada %d, строка %d: %w", rec.Item, row, err)
			}
			if err := b.replicateFormulas(row); err != nil {
				return 0, fmt.Errorf("bancada %d, строка %d: %w", rec.Item, row, err)
			}
			b.cloneStyles(row)
			item++
		}
		cursor += n
		b.paintSeparator(cursor - 1)
	}
	return cursor - b.geo.dataRow, nil
}

func (b *reportBuilder) writeRow(row, item int, rec TestBenchRecord, p RowPayload, order InspectionOrder, today string, pressure float64, hasPressure bool) error {
	g := b.geo
	vals := []struct {
		col int
		v   interface{}
	}{
		{g.item, item},
		{g.dateFrom, today},
		{g.dateTo, today},
		{g.facility, order.FacilityID},
		{g.operator, order.OperatorID},
	}
	for _, cv := range vals {
		if err := b.set(cv.col, row, cv.v); err != nil {
			return err
		}
	}
	if b.meterCol > 0 {
		meter := p.Meter
		if meter == "" {
			meter = rec.Meter
		}
		if err := b.set(b.meterCol, row, meter); err != nil {
			return err
		}
	}
	if hasPressure {
		if err := b.set(g.pressure, row, pressure); err != nil {
			return err
		}
	}
	if err := b.set(b.statusCol, row, rec.Status); err != nil {
		return err
	}
	for _, blk := range []struct {
		start int
		data  *Block
	}{{g.q3Col, p.Q3}, {g.q2Col, p.Q2}, {g.q1Col, p.Q1}} {
		if err := b.writeBlock(row, blk.start, blk.data); err != nil {
			return err
		}
	}
	return nil
}

func (b *reportBuilder) writeBlock(row, start int, blk *Block) error {
	if blk == nil {
		return nil
	}
	for i, r := range blk {
		if r == nil {
			continue
		}
		if err := b.set(start+i, row, r.Value()); err != nil {
			return err
		}
	}
	return nil
}

func (b *reportBuilder) set(col, row int, v interface{}) error {
	addr, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return b.f.SetCellValue(b.sheet, addr, v)
}

// -----------------------------
// Формулы
// -----------------------------

// ShiftFormulaRow переносит формулу со строки src на строку dst простой заменой
// подстроки: каждое вхождение десятичного номера src становится dst.
// Ограничение: константы, содержащие те же цифры (например 0.9 при src=9),
// тоже будут заменены.
func ShiftFormulaRow(formula string, src, dst int) string {
	if src == dst {
		return formula
	}
	return strings.ReplaceAll(formula, strconv.Itoa(src), strconv.Itoa(dst))
}

// replicateFormulas копирует полосу формул строки-образца в row.
// Неякорные ячейки слияний пропускаются.
func (b *reportBuilder) replicateFormulas(row int) error {
	if row == b.geo.dataRow {
		return nil
	}
	for col := b.geo.formulaFrom; col <= b.geo.formulaTo; col++ {
		bc, ok := b.tpl.cells[col]
		if !ok {
			continue
		}
		addr, _ := excelize.CoordinatesToCellName(col, row)
		if _, merged := b.nonAnchor[addr]; merged {
			continue
		}
		if bc.clear {
			if b.writesColumn(col) {
				continue
			}
			if err := b.clearCell(addr); err != nil {
				return fmt.Errorf("очистка %s: %w", addr, err)
			}
			continue
		}
		if bc.formula != "" {
			if err := b.f.SetCellFormula(b.sheet, addr, ShiftFormulaRow(bc.formula, b.geo.dataRow, row)); err != nil {
				return fmt.Errorf("формула %s: %w", addr, err)
			}
			continue
		}
		if err := b.setTyped(addr, bc); err != nil {
			return fmt.Errorf("значение %s: %w", addr, err)
		}
	}
	return nil
}

// clearCell убирает формулу и значение ячейки, стиль остаётся.
func (b *reportBuilder) clearCell(addr string) error {
	formula, err := b.f.GetCellFormula(b.sheet, addr)
	if err != nil {
		return err
	}
	if formula != "" {
		if err := b.f.SetCellFormula(b.sheet, addr, ""); err != nil {
			return err
		}
	}
	v, err := b.f.GetCellValue(b.sheet, addr, excelize.Options{RawCellValue: true})
	if err != nil || v == "" {
		return err
	}
	return b.f.SetCellValue(b.sheet, addr, nil)
}

// writesColumn — колонку заполняет writeRow, очистка по образцу её не трогает.
func (b *reportBuilder) writesColumn(col int) bool {
	g := b.geo
	switch col {
	case g.item, g.dateFrom, g.dateTo, g.facility, g.operator, g.pressure, b.statusCol, b.meterCol:
		return true
	}
	for _, start := range []int{g.q3Col, g.q2Col, g.q1Col} {
		if col >= start && col < start+BlockWidth {
			return true
		}
	}
	return false
}

func (b *reportBuilder) setTyped(addr string, bc bandCell) error {
	switch bc.typ {
	case excelize.CellTypeBool:
		return b.f.SetCellBool(b.sheet, addr, bc.value == "1" || strings.EqualFold(bc.value, "true"))
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(bc.value, 64); err == nil {
			return b.f.SetCellValue(b.sheet, addr, n)
		}
	}
	return b.f.SetCellValue(b.sheet, addr, bc.value)
}

// -----------------------------
// Стили
// -----------------------------

func (b *reportBuilder) fault(cell string, err error) {
	b.faults = append(b.faults, CellFault{Cell: cell, Err: err})
	b.log.Debug("Стиль ячейки пропущен", zap.String("cell", cell), zap.Error(err))
}

// cloneStyles переносит стили строки-образца (шрифт, формат, выравнивание, заливка,
// границы, защита) и высоту строки. Ошибка на ячейке попадает в faults и не прерывает строку.
func (b *reportBuilder) cloneStyles(row int) {
	if row == b.geo.dataRow {
		return
	}
	if b.tpl.height > 0 {
		if err := b.f.SetRowHeight(b.sheet, row, b.tpl.height); err != nil {
			b.fault(fmt.Sprintf("%d:%d", row, row), err)
		}
	}
	for col := b.geo.styleFrom; col <= b.geo.styleTo; col++ {
		sid, ok := b.tpl.styles[col]
		if !ok {
			continue
		}
		addr, _ := excelize.CoordinatesToCellName(col, row)
		if _, merged := b.nonAnchor[addr]; merged {
			continue
		}
		if err := b.f.SetCellStyle(b.sheet, addr, addr, sid); err != nil {
			b.fault(addr, err)
		}
	}
}

// paintSeparator — толстая нижняя граница по всей полосе стилей на последней строке записи.
func (b *reportBuilder) paintSeparator(row int) {
	for col := b.geo.styleFrom; col <= b.geo.styleTo; col++ {
		addr, _ := excelize.CoordinatesToCellName(col, row)
		sid, err := b.f.GetCellStyle(b.sheet, addr)
		if err != nil {
			b.fault(addr, err)
			continue
		}
		thick, ok := b.separators[sid]
		if !ok {
			if thick, err = b.thickBottom(sid); err != nil {
				b.fault(addr, err)
				continue
			}
			b.separators[sid] = thick
		}
		if err := b.f.SetCellStyle(b.sheet, addr, addr, thick); err != nil {
			b.fault(addr, err)
		}
	}
}

func (b *reportBuilder) thickBottom(sid int) (int, error) {
	st, err := b.f.GetStyle(sid)
	if err != nil {
		return 0, err
	}
	borders := make([]excelize.Border, 0, len(st.Border)+1)
	for _, br := range st.Border {
		if br.Type != "bottom" {
			borders = append(borders, br)
		}
	}
	st.Border = append(borders, excelize.Border{Type: "bottom", Color: "000000", Style: thickBorder})
	return b.f.NewStyle(st)
}

// -----------------------------
// Защита и сохранение
// -----------------------------

// protect блокирует структуру книги (хэш SHA-512, пароль не хранится) и
// ставит пароль на каждый лист (собственный хэш Excel для листов).
func (b *reportBuilder) protect(password string) error {
	if password == "" {
		return nil
	}
	if err := b.f.ProtectWorkbook(&excelize.WorkbookProtectionOptions{
		AlgorithmName: "SHA-512",
		Password:      password,
		LockStructure: true,
	}); err != nil {
		return fmt.Errorf("защита книги: %w", err)
	}
	for _, sheet := range b.f.GetSheetList() {
		if err := b.f.ProtectSheet(sheet, &excelize.SheetProtectionOptions{
			Password:            password,
			SelectLockedCells:   true,
			SelectUnlockedCells: true,
		}); err != nil {
			return fmt.Errorf("защита листа %s: %w", sheet, err)
		}
	}
	return nil
}

// serialize отдаёт книгу байтами. Формулы записаны без кэша значений,
// поэтому книга помечается на полный пересчёт при открытии.
func (b *reportBuilder) serialize() ([]byte, error) {
	full := true
	if err := b.f.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &full}); err != nil {
		return nil, fmt.Errorf("параметры пересчёта: %w", err)
	}
	buf, err := b.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("сохранение книги: %w", err)
	}
	return buf.Bytes(), nil
}
