package oireport

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — класс ошибок, которые исправляет клиент (неверные входные данные).
	ErrValidation = errors.New("ошибка валидации")
	// ErrTemplateMissing возвращается в строгом режиме, если файла шаблона нет.
	ErrTemplateMissing = errors.New("шаблон не найден")
)

// ValidationError — поле заказа или записи стенда не прошло правило.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// LookupError — значение не найдено в списке шаблона для целевой ячейки.
type LookupError struct {
	Field string // Q3 | Alcance
	Cell  string // целевая ячейка (E4, O4)
	Range string // диапазон списка
	Value interface{}
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s=%v не совпадает ни с одним значением списка %s (ячейка %s)", e.Field, e.Value, e.Range, e.Cell)
}

func (e *LookupError) Is(target error) bool { return target == ErrValidation }

// IsValidation сообщает, относится ли ошибка к исправимым клиентом.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// CellFault — ячейка, стиль которой не удалось перенести. Не прерывает генерацию.
type CellFault struct {
	Cell string
	Err  error
}

func (c CellFault) String() string { return c.Cell + ": " + c.Err.Error() }
