package oireport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressureFor(t *testing.T) {
	p, ok := PressureFor(10)
	require.True(t, ok)
	assert.Equal(t, 16.0, p)

	p, ok = PressureFor(16)
	require.True(t, ok)
	assert.Equal(t, 25.6, p)

	for _, pma := range []int{0, 12, 13, 25} {
		_, ok := PressureFor(pma)
		assert.False(t, ok, "pma=%d", pma)
	}
}

func TestNewInspectionOrder(t *testing.T) {
	o, err := NewInspectionOrder("OI-0042-2025", 2.5, 160, 16, 3, 101)
	require.NoError(t, err)
	assert.Equal(t, 25.6, o.PressureBar)
	assert.Equal(t, "OI-0042-2025.xlsx", o.Filename())
	assert.False(t, o.CreatedAt.IsZero())

	_, err = NewInspectionOrder("OI-0042-2025", 2.5, 160, 12, 3, 101)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "pma", ve.Field)
}

func TestValidateOrder_Code(t *testing.T) {
	for code, valid := range map[string]bool{
		"OI-0001-2025":  true,
		"OI-1234-5678":  true,
		"OI-123-2025":   false,
		"oi-0001-2025":  false,
		"OI-0001-2025x": false,
		"":              false,
	} {
		err := ValidateOrder(InspectionOrder{Code: code, PMA: 10})
		if valid {
			assert.NoError(t, err, code)
			continue
		}
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), code)
		assert.Equal(t, "code", ve.Field)
	}
}

func TestValidateRecord(t *testing.T) {
	require.NoError(t, ValidateRecord(TestBenchRecord{Item: 1, Status: 5, DefaultRows: 15}))
	require.NoError(t, ValidateRecord(TestBenchRecord{}))

	err := ValidateRecord(TestBenchRecord{Status: 6})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "estado", ve.Field)
	assert.Equal(t, 6, ve.Value)

	err = ValidateRecord(TestBenchRecord{DefaultRows: -1})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "rows", ve.Field)

	// обёртка сохраняет класс ошибки
	assert.True(t, IsValidation(fmt.Errorf("bancada 3: %w", err)))
}

func TestRowCount(t *testing.T) {
	payloads := make([]RowPayload, 3)
	assert.Equal(t, 3, RowCount(TestBenchRecord{Rows: payloads, DefaultRows: 15}))
	assert.Equal(t, 15, RowCount(TestBenchRecord{DefaultRows: 15}))
	assert.Equal(t, 4, RowCount(TestBenchRecord{DefaultRows: 4}))
	assert.Equal(t, DefaultRowCount, RowCount(TestBenchRecord{}))
	assert.Equal(t, DefaultRowCount, RowCount(TestBenchRecord{DefaultRows: -2}))
}

func TestNextItem(t *testing.T) {
	assert.Equal(t, 1, NextItem(nil))
	assert.Equal(t, 6, NextItem([]TestBenchRecord{{Item: 2}, {Item: 5}, {Item: 1}}))
	// удалённый номер не переиспользуется, пока есть больший
	assert.Equal(t, 4, NextItem([]TestBenchRecord{{Item: 1}, {Item: 3}}))
}

func TestCatalogMatchesSyntheticLists(t *testing.T) {
	c := Catalog()
	assert.Len(t, c.Q3, 4)
	assert.Len(t, c.Alcance, 6)
	assert.Equal(t, []int{10, 16}, c.PMA)
	for _, pma := range c.PMA {
		_, ok := PressureFor(pma)
		assert.True(t, ok)
	}
}
