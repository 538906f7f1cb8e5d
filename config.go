package oireport

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config — настройки движка отчётов.
type Config struct {
	// Путь к шаблону PLANTILLA_VI.xlsx
	TemplatePath string `yaml:"template_path"`
	// Строгий режим: отсутствие шаблона — ошибка, без синтетического документа
	StrictTemplate bool      `yaml:"strict_template"`
	Layout         Layout    `yaml:"layout"`
	Log            LogConfig `yaml:"log"`
}

// LogConfig — уровень и формат логов (json | console).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewLogger собирает zap-логгер из LogConfig.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	zc.Level = level
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}

// Band — непрерывный диапазон колонок, буквы включительно.
type Band struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Columns — фиксированные колонки строки данных.
type Columns struct {
	Item     string `yaml:"item"`
	DateFrom string `yaml:"date_from"`
	DateTo   string `yaml:"date_to"`
	Facility string `yaml:"facility"`
	Operator string `yaml:"operator"`
	Pressure string `yaml:"pressure"`
}

// BlockColumns — первые колонки блоков измерений.
type BlockColumns struct {
	Q3 string `yaml:"q3"`
	Q2 string `yaml:"q2"`
	Q1 string `yaml:"q1"`
}

// Layout — геометрия шаблона. Строки и колонки 1-based, как в Excel.
type Layout struct {
	SheetName    string       `yaml:"sheet_name"`
	HeaderRow    int          `yaml:"header_row"`
	DataStartRow int          `yaml:"data_start_row"`
	Q3Cell       string       `yaml:"q3_cell"`
	Q3Range      string       `yaml:"q3_range"`
	AlcanceCell  string       `yaml:"alcance_cell"`
	AlcanceRange string       `yaml:"alcance_range"`
	StatusHeader string       `yaml:"status_header"`
	MeterHeader  string       `yaml:"meter_header"`
	FormulaBand  Band         `yaml:"formula_band"`
	StyleBand    Band         `yaml:"style_band"`
	Columns      Columns      `yaml:"columns"`
	Blocks       BlockColumns `yaml:"blocks"`
	DateFormat   string       `yaml:"date_format"`
}

// DefaultLayout — контракт шаблона PLANTILLA_VI, лист «ERROR FINAL».
func DefaultLayout() Layout {
	return Layout{
		SheetName:    "ERROR FINAL",
		HeaderRow:    8,
		DataStartRow: 9,
		Q3Cell:       "E4",
		Q3Range:      "AZ2:BC2",
		AlcanceCell:  "O4",
		AlcanceRange: "AZ1:BE1",
		StatusHeader: "Estado",
		MeterHeader:  "# Medidor",
		FormulaBand:  Band{From: "AU", To: "BL"},
		StyleBand:    Band{From: "A", To: "BL"},
		Columns: Columns{
			Item:     "A",
			DateFrom: "B",
			DateTo:   "C",
			Facility: "D",
			Operator: "E",
			Pressure: "H",
		},
		Blocks:     BlockColumns{Q3: "J", Q2: "V", Q1: "AH"},
		DateFormat: "2006-01-02",
	}
}

// DefaultConfig — настройки по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		TemplatePath: "data/PLANTILLA_VI.xlsx",
		Layout:       DefaultLayout(),
		Log:          LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig читает YAML поверх значений по умолчанию. Отсутствующий файл —
// не ошибка. Переменные окружения VI_* имеют приоритет.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("VI_TEMPLATE_PATH"); v != "" {
		c.TemplatePath = v
	}
	if v := os.Getenv("VI_STRICT_TEMPLATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VI_STRICT_TEMPLATE: %w", err)
		}
		c.StrictTemplate = b
	}
	if v := os.Getenv("VI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("VI_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate проверяет согласованность геометрии.
func (l Layout) Validate() error {
	_, err := l.resolve()
	return err
}

// geometry — Layout, переведённый в номера колонок.
type geometry struct {
	sheet        string
	headerRow    int
	dataRow      int
	q3Cell       string
	q3Range      string
	alcanceCell  string
	alcanceRange string
	statusHeader string
	meterHeader  string
	formulaFrom  int
	formulaTo    int
	styleFrom    int
	styleTo      int
	item         int
	dateFrom     int
	dateTo       int
	facility     int
	operator     int
	pressure     int
	q3Col        int
	q2Col        int
	q1Col        int
	dateFormat   string
}

func (l Layout) resolve() (geometry, error) {
	g := geometry{
		sheet:        l.SheetName,
		headerRow:    l.HeaderRow,
		dataRow:      l.DataStartRow,
		q3Cell:       l.Q3Cell,
		q3Range:      l.Q3Range,
		alcanceCell:  l.AlcanceCell,
		alcanceRange: l.AlcanceRange,
		statusHeader: l.StatusHeader,
		meterHeader:  l.MeterHeader,
		dateFormat:   l.DateFormat,
	}
	if g.headerRow < 1 || g.dataRow <= g.headerRow {
		return g, fmt.Errorf("layout: строка данных (%d) должна быть ниже заголовка (%d)", g.dataRow, g.headerRow)
	}
	if strings.TrimSpace(g.statusHeader) == "" {
		return g, fmt.Errorf("layout: пустой заголовок колонки статуса")
	}
	if g.dateFormat == "" {
		g.dateFormat = "2006-01-02"
	}
	for _, cell := range []string{g.q3Cell, g.alcanceCell} {
		if _, _, err := excelize.CellNameToCoordinates(cell); err != nil {
			return g, fmt.Errorf("layout: целевая ячейка %q: %w", cell, err)
		}
	}
	for _, ref := range []string{g.q3Range, g.alcanceRange} {
		if _, err := rangeCells(ref); err != nil {
			return g, fmt.Errorf("layout: %w", err)
		}
	}
	cols := []struct {
		name string
		dst  *int
	}{
		{l.FormulaBand.From, &g.formulaFrom}, {l.FormulaBand.To, &g.formulaTo},
		{l.StyleBand.From, &g.styleFrom}, {l.StyleBand.To, &g.styleTo},
		{l.Columns.Item, &g.item}, {l.Columns.DateFrom, &g.dateFrom}, {l.Columns.DateTo, &g.dateTo},
		{l.Columns.Facility, &g.facility}, {l.Columns.Operator, &g.operator}, {l.Columns.Pressure, &g.pressure},
		{l.Blocks.Q3, &g.q3Col}, {l.Blocks.Q2, &g.q2Col}, {l.Blocks.Q1, &g.q1Col},
	}
	for _, c := range cols {
		n, err := excelize.ColumnNameToNumber(c.name)
		if err != nil {
			return g, fmt.Errorf("layout: колонка %q: %w", c.name, err)
		}
		*c.dst = n
	}
	if g.formulaFrom > g.formulaTo || g.styleFrom > g.styleTo {
		return g, fmt.Errorf("layout: начало полосы колонок правее конца")
	}
	return g, nil
}

// rangeCells раскрывает диапазон вида "AZ2:BC2" в имена ячеек построчно.
func rangeCells(ref string) ([]string, error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("диапазон %q: ожидалось <ячейка>:<ячейка>", ref)
	}
	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return nil, fmt.Errorf("диапазон %q: %w", ref, err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil {
		return nil, fmt.Errorf("диапазон %q: %w", ref, err)
	}
	if c1 > c2 || r1 > r2 {
		return nil, fmt.Errorf("диапазон %q: перевёрнутые границы", ref)
	}
	var out []string
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			name, _ := excelize.CoordinatesToCellName(c, r)
			out = append(out, name)
		}
	}
	return out, nil
}
