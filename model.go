package oireport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	// BlockWidth — число полей (c1..c7) в блоке измерений.
	BlockWidth = 7
	// DefaultRowCount — строк на запись стенда, если нет ни rows_data, ни rows.
	DefaultRowCount = 15
	// ContentType документа для отдачи клиенту.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// DocumentExt — расширение имени файла отчёта.
	DocumentExt = ".xlsx"
)

// InspectionOrder — заказ на поверку (OI).
type InspectionOrder struct {
	ID          int64     `json:"id,omitempty"`
	Code        string    `json:"code"`
	Q3          float64   `json:"q3"`
	Alcance     int       `json:"alcance"`
	PMA         int       `json:"pma"`
	PressureBar float64   `json:"presion_bar"`
	FacilityID  int       `json:"banco_id"`
	OperatorID  int       `json:"tech_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewInspectionOrder проверяет поля и вычисляет давление по PMA.
// Заказ с PMA вне {10, 16} создать нельзя.
func NewInspectionOrder(code string, q3 float64, alcance, pma, facilityID, operatorID int) (InspectionOrder, error) {
	o := InspectionOrder{
		Code:       code,
		Q3:         q3,
		Alcance:    alcance,
		PMA:        pma,
		FacilityID: facilityID,
		OperatorID: operatorID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := ValidateOrder(o); err != nil {
		return InspectionOrder{}, err
	}
	p, _ := PressureFor(pma)
	o.PressureBar = p
	return o, nil
}

// Filename — имя файла отчёта для заказа.
func (o InspectionOrder) Filename() string { return o.Code + DocumentExt }

// TestBenchRecord — запись стенда (bancada), принадлежит одному заказу.
type TestBenchRecord struct {
	ID          int64        `json:"id,omitempty"`
	OrderID     int64        `json:"oi_id,omitempty"`
	Item        int          `json:"item"`
	Meter       string       `json:"medidor,omitempty"`
	Status      int          `json:"estado"`
	DefaultRows int          `json:"rows"`
	Rows        []RowPayload `json:"rows_data,omitempty"`
}

// RowCount — сколько физических строк даёт запись: len(rows_data), иначе rows,
// иначе DefaultRowCount.
func RowCount(rec TestBenchRecord) int {
	if len(rec.Rows) > 0 {
		return len(rec.Rows)
	}
	if rec.DefaultRows > 0 {
		return rec.DefaultRows
	}
	return DefaultRowCount
}

// NextItem — порядковый номер новой записи внутри заказа: max + 1.
func NextItem(records []TestBenchRecord) int {
	last := 0
	for _, r := range records {
		if r.Item > last {
			last = r.Item
		}
	}
	return last + 1
}

// RowPayload — данные одной строки: свой номер счётчика и до трёх блоков.
// Отсутствующий блок или поле не трогает ячейку (кроме формул и стилей).
type RowPayload struct {
	Meter string `json:"medidor,omitempty"`
	Q3    *Block `json:"q3,omitempty"`
	Q2    *Block `json:"q2,omitempty"`
	Q1    *Block `json:"q1,omitempty"`
}

// Block — блок измерений c1..c7, nil в слоте означает «нет значения».
type Block [BlockWidth]*Reading

// Reading — одно показание: число или текст.
type Reading struct {
	num    float64
	text   string
	isText bool
}

// Num создаёт числовое показание.
func Num(v float64) *Reading { return &Reading{num: v} }

// Text создаёт текстовое показание.
func Text(s string) *Reading { return &Reading{text: s, isText: true} }

// Value возвращает значение для записи в ячейку.
func (r *Reading) Value() interface{} {
	if r.isText {
		return r.text
	}
	return r.num
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch vv := v.(type) {
	case float64:
		*r = Reading{num: vv}
	case string:
		*r = Reading{text: vv, isText: true}
	default:
		return fmt.Errorf("показание: ожидалось число или строка, получено %s", string(data))
	}
	return nil
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if r.isText {
		return json.Marshal(r.text)
	}
	return json.Marshal(r.num)
}

func blockKey(i int) string { return "c" + strconv.Itoa(i+1) }

// UnmarshalJSON читает блок в форме {"c1": ..., "c7": ...}; лишние ключи игнорируются.
func (b *Block) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("блок измерений: %w", err)
	}
	var out Block
	for i := range out {
		raw, ok := m[blockKey(i)]
		if !ok || string(raw) == "null" {
			continue
		}
		rd := new(Reading)
		if err := rd.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("блок измерений %s: %w", blockKey(i), err)
		}
		out[i] = rd
	}
	*b = out
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	m := make(map[string]*Reading, BlockWidth)
	for i, r := range b {
		if r != nil {
			m[blockKey(i)] = r
		}
	}
	return json.Marshal(m)
}

// Document — результат генерации.
type Document struct {
	Bytes    []byte
	Filename string
	Rows     int
	// TemplateMissing — шаблона не было, использован синтетический документ.
	TemplateMissing bool
	StyleFaults     []CellFault
}
