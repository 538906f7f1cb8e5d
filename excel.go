package oireport

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine формирует отчёты по шаблону. Неизменяем после NewEngine и безопасен
// для параллельных вызовов: каждый Generate открывает собственную копию шаблона.
type Engine struct {
	cfg      Config
	geo      geometry
	template []byte
	log      *zap.Logger
	metrics  *Metrics
	now      func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт логгер (по умолчанию zap.NewNop).
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMetrics подключает метрики Prometheus.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock подменяет источник текущей даты.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithTemplateBytes использует шаблон из памяти вместо Config.TemplatePath.
func WithTemplateBytes(data []byte) Option {
	return func(e *Engine) {
		e.template = append([]byte(nil), data...)
	}
}

// NewEngine проверяет геометрию шаблона и собирает движок.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	geo, err := cfg.Layout.resolve()
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, geo: geo, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Generate заполняет шаблон данными заказа и его записей стенда и возвращает
// байты книги. Ошибки валидации и несовпадения со списками шаблона
// удовлетворяют IsValidation. При любой ошибке документ не возвращается.
func (e *Engine) Generate(order InspectionOrder, records []TestBenchRecord, password string) (doc *Document, err error) {
	started := time.Now()
	log := e.log.With(zap.String("run_id", uuid.NewString()), zap.String("order", order.Code))
	defer func() {
		outcome := outcomeOK
		switch {
		case err != nil && IsValidation(err):
			outcome = outcomeInvalid
		case err != nil:
			outcome = outcomeError
		}
		e.metrics.observe(outcome, started, doc)
	}()

	log.Info("📊 Начинаем формирование отчёта", zap.Int("bancadas", len(records)), zap.Bool("protected", password != ""))

	if err = validateCode(order); err != nil {
		log.Warn("❌ Заказ не прошёл проверку", zap.Error(err))
		return nil, err
	}
	for _, r := range records {
		if err = ValidateRecord(r); err != nil {
			log.Warn("❌ Запись стенда не прошла проверку", zap.Int("item", r.Item), zap.Error(err))
			return nil, fmt.Errorf("bancada %d: %w", r.Item, err)
		}
	}

	log.Debug("🔄 Загрузка Excel шаблона...", zap.String("path", e.cfg.TemplatePath))
	f, synthetic, err := openWorkbook(e.cfg.TemplatePath, e.template, e.cfg.StrictTemplate, e.geo)
	if err != nil {
		log.Error("❌ Ошибка загрузки шаблона", zap.Error(err))
		return nil, err
	}
	b := &reportBuilder{f: f, geo: e.geo, synthetic: synthetic, separators: make(map[int]int), log: log}
	defer b.close()
	if synthetic {
		log.Warn("⚠️ Шаблон не найден, используется синтетический документ", zap.String("path", e.cfg.TemplatePath))
	}
	if err = b.prepare(); err != nil {
		return nil, err
	}
	log.Debug("✅ Шаблон загружен", zap.String("sheet", b.sheet))

	if err = b.populateTargets(order); err != nil {
		log.Warn("❌ Значение не найдено в списке шаблона", zap.Error(err))
		return nil, err
	}
	if err = b.locateColumns(); err != nil {
		return nil, err
	}

	log.Debug("🔄 Запись строк стендов...")
	rows, err := b.writeRecords(order, records, e.now().Format(e.geo.dateFormat))
	if err != nil {
		log.Error("❌ Ошибка записи строк", zap.Error(err))
		return nil, err
	}
	if err = b.protect(password); err != nil {
		return nil, err
	}
	data, err := b.serialize()
	if err != nil {
		log.Error("❌ Ошибка сохранения", zap.Error(err))
		return nil, err
	}

	doc = &Document{
		Bytes:           data,
		Filename:        order.Filename(),
		Rows:            rows,
		TemplateMissing: synthetic,
		StyleFaults:     b.faults,
	}
	log.Info("✅ Excel файл создан",
		zap.Int("rows", rows),
		zap.Int("bytes", len(data)),
		zap.Int("style_faults", len(b.faults)),
		zap.Duration("duration", time.Since(started)))
	return doc, nil
}

// Save записывает документ в каталог dir под его именем и возвращает путь.
func (d *Document) Save(dir string) (string, error) {
	path := filepath.Join(dir, d.Filename)
	if err := os.WriteFile(path, d.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("запись %s: %w", path, err)
	}
	return path, nil
}
