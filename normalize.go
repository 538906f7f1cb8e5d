package oireport

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeListValue приводит скаляр к текстовой форме, в которой значения
// хранятся в выпадающих списках шаблона:
// - строка обрезается по краям
// - число с точкой (и без запятой) получает десятичную запятую
// Отсутствующее значение (nil) остаётся отсутствующим: ok=false.
func NormalizeListValue(v interface{}) (string, bool) {
	s, ok := scalarText(v)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ",") && strings.Contains(s, ".") {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			s = strings.ReplaceAll(s, ".", ",")
		}
	}
	return s, true
}

// MatchInList ищет desired среди candidates после нормализации обеих сторон.
// Возвращает сам кандидат (в том виде, как он записан в шаблоне), а не
// нормализованное искомое значение. Пустые кандидаты пропускаются.
// Сравнение строгое по тексту, без числовых допусков.
func MatchInList(candidates []string, desired interface{}) (string, bool) {
	target, ok := NormalizeListValue(desired)
	if !ok {
		return "", false
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if n, _ := NormalizeListValue(c); n == target {
			return c, true
		}
	}
	return "", false
}

// scalarText превращает значение в строку. Дробные числа всегда пишутся
// с дробной частью (4 -> "4.0"), как их показывает список шаблона ("4,0").
func scalarText(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", false
	case string:
		return vv, true
	case *string:
		if vv == nil {
			return "", false
		}
		return *vv, true
	case float64:
		return floatText(vv), true
	case float32:
		return floatText(float64(vv)), true
	case *float64:
		if vv == nil {
			return "", false
		}
		return floatText(*vv), true
	case int:
		return strconv.Itoa(vv), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case *int:
		if vv == nil {
			return "", false
		}
		return strconv.Itoa(*vv), true
	case json.Number:
		return vv.String(), true
	default:
		return fmt.Sprintf("%v", vv), true
	}
}

func floatText(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
