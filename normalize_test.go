package oireport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeListValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{"1.5", "1,5"},
		{" 2.5 ", "2,5"},
		{"1,5", "1,5"},
		{"1.234,5", "1.234,5"},
		{"abc.def", "abc.def"},
		{"160", "160"},
		{"", ""},
		{4.0, "4,0"},
		{1.6, "1,6"},
		{160, "160"},
		{int64(7), "7"},
	}
	for _, c := range cases {
		got, ok := NormalizeListValue(c.in)
		require.True(t, ok, "%v", c.in)
		assert.Equal(t, c.want, got, "%v", c.in)
	}
}

func TestNormalizeListValue_AbsentStaysAbsent(t *testing.T) {
	var sp *string
	var fp *float64
	for _, v := range []interface{}{nil, sp, fp} {
		_, ok := NormalizeListValue(v)
		assert.False(t, ok, "%#v", v)
	}
}

// Точка меняется на запятую, остальные символы не трогаются.
func TestNormalizeListValue_PeriodOnly(t *testing.T) {
	for _, in := range []string{"0.5", "12.75", "-3.1", "100.0", "6.3"} {
		got, ok := NormalizeListValue(in)
		require.True(t, ok)
		assert.Equal(t, strings.ReplaceAll(in, ".", ","), got)
	}
}

func TestMatchInList(t *testing.T) {
	candidates := []string{"", "1,6", "2,5", " 4,0 ", "6,3"}

	m, ok := MatchInList(candidates, 2.5)
	require.True(t, ok)
	assert.Equal(t, "2,5", m)

	// возвращается кандидат как есть, не нормализованное искомое
	m, ok = MatchInList(candidates, "4.0")
	require.True(t, ok)
	assert.Equal(t, " 4,0 ", m)
	assert.Contains(t, candidates, m)

	_, ok = MatchInList(candidates, 2.55)
	assert.False(t, ok, "без числовых допусков")

	_, ok = MatchInList(candidates, nil)
	assert.False(t, ok)

	_, ok = MatchInList(candidates, "")
	assert.False(t, ok, "пустые кандидаты пропускаются")
}

func TestMatchInList_NumericCandidates(t *testing.T) {
	candidates := []string{"100", "125", "160", "200", "400", "500"}
	m, ok := MatchInList(candidates, 160)
	require.True(t, ok)
	assert.Equal(t, "160", m)

	_, ok = MatchInList(candidates, 150)
	assert.False(t, ok)
}
