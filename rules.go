package oireport

import (
	"fmt"

	expro "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Давление (бар) по классу PMA. Закрытый справочник, без интерполяции.
var pmaToPressure = map[int]float64{
	10: 16.0,
	16: 25.6,
}

// PressureFor возвращает давление для класса PMA; ok=false вне справочника.
func PressureFor(pma int) (float64, bool) {
	p, ok := pmaToPressure[pma]
	return p, ok
}

// -----------------------------
// Правила входных данных (expr)
// -----------------------------

type orderEnv struct {
	Code    string
	PMA     int
	Q3      float64
	Alcance int
}

type recordEnv struct {
	Item        int
	Status      int
	DefaultRows int
}

type rule struct {
	field   string
	reason  string
	program *vm.Program
}

func mustRules(env interface{}, defs [][3]string) []rule {
	out := make([]rule, 0, len(defs))
	for _, d := range defs {
		p, err := expro.Compile(d[1], expro.Env(env), expro.AsBool())
		if err != nil {
			panic(fmt.Sprintf("правило %s: %v", d[0], err))
		}
		out = append(out, rule{field: d[0], reason: d[2], program: p})
	}
	return out
}

// {поле, выражение, причина}
var (
	codeRules = mustRules(orderEnv{}, [][3]string{
		{"code", `Code matches "^OI-\\d{4}-\\d{4}$"`, "код OI должен иметь формат OI-####-####"},
	})
	pmaRules = mustRules(orderEnv{}, [][3]string{
		{"pma", `PMA in [10, 16]`, "PMA допускает только 10 или 16"},
	})
	recordRules = mustRules(recordEnv{}, [][3]string{
		{"estado", `Status >= 0 && Status <= 5`, "estado вне диапазона 0..5"},
		{"rows", `DefaultRows >= 0`, "число строк не может быть отрицательным"},
		{"item", `Item >= 0`, "порядковый номер не может быть отрицательным"},
	})
)

func runRules(rules []rule, env interface{}, value func(field string) interface{}) error {
	for _, r := range rules {
		out, err := expro.Run(r.program, env)
		if err != nil {
			return fmt.Errorf("правило %s: %w", r.field, err)
		}
		if ok, _ := out.(bool); !ok {
			return &ValidationError{Field: r.field, Value: value(r.field), Reason: r.reason}
		}
	}
	return nil
}

// ValidateOrder проверяет код и класс PMA заказа.
func ValidateOrder(o InspectionOrder) error {
	if err := validateCode(o); err != nil {
		return err
	}
	return runRules(pmaRules, orderEnv{PMA: o.PMA}, func(string) interface{} { return o.PMA })
}

// validateCode — проверка заказа перед генерацией. Класс PMA вне справочника
// здесь не ошибка: давление в строках просто не пишется.
func validateCode(o InspectionOrder) error {
	return runRules(codeRules, orderEnv{Code: o.Code}, func(string) interface{} { return o.Code })
}

// ValidateRecord проверяет запись стенда.
func ValidateRecord(r TestBenchRecord) error {
	env := recordEnv{Item: r.Item, Status: r.Status, DefaultRows: r.DefaultRows}
	return runRules(recordRules, env, func(field string) interface{} {
		switch field {
		case "estado":
			return r.Status
		case "item":
			return r.Item
		}
		return r.DefaultRows
	})
}

// -----------------------------
// Справочники
// -----------------------------

// Facility — стенд (banco).
type Facility struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Catalogs — допустимые значения формы заказа.
type Catalogs struct {
	Q3       []float64  `json:"q3" yaml:"q3"`
	Alcance  []int      `json:"alcance" yaml:"alcance"`
	PMA      []int      `json:"pma" yaml:"pma"`
	Facility []Facility `json:"bancos" yaml:"bancos"`
}

// Catalog возвращает справочники; q3 и alcance совпадают со списками шаблона.
func Catalog() Catalogs {
	return Catalogs{
		Q3:      []float64{1.6, 2.5, 4.0, 6.3},
		Alcance: []int{100, 125, 160, 200, 400, 500},
		PMA:     []int{10, 16},
		Facility: []Facility{
			{ID: 3, Name: "Banco 3"},
			{ID: 4, Name: "Banco 4"},
			{ID: 5, Name: "Banco 5"},
			{ID: 6, Name: "Banco 6"},
		},
	}
}
