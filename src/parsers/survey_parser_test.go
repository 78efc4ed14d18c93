package parsers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, headers []string, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &headers))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseFilledTemplate(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{ColApartment, ColArea},
		[][]string{
			{"1", "50.5"},
			{"2", "48.0"},
			{"3", "101.25"},
		})

	records, err := NewSurveyParser().Parse(buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "1", records[0].PropertyID)
	assert.InDelta(t, 50.5, records[0].Area, 1e-9)
	assert.Equal(t, "3", records[2].PropertyID)
	assert.InDelta(t, 101.25, records[2].Area, 1e-9)
}

func TestParseAcceptsCommaDecimalSeparator(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{ColApartment, ColArea},
		[][]string{{"15", "47,8"}})

	records, err := NewSurveyParser().Parse(buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 47.8, records[0].Area, 1e-9)
}

func TestParseSkipsRowsWithoutArea(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{ColApartment, ColArea},
		[][]string{
			{"1", "50.0"},
			{"2", ""},
			{"3", "  "},
			{"4", "49.1"},
		})

	records, err := NewSurveyParser().Parse(buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].PropertyID)
	assert.Equal(t, "4", records[1].PropertyID)
}

func TestParseIgnoresExtraColumns(t *testing.T) {
	buf := buildWorkbook(t,
		[]string{"Примечание", ColApartment, "Корпус", ColArea},
		[][]string{{"n/a", "7", "2", "60.0"}})

	records, err := NewSurveyParser().Parse(buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].PropertyID)
	assert.InDelta(t, 60.0, records[0].Area, 1e-9)
}

func TestParseRejectsMissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
	}{
		{"no area column", []string{ColApartment, "Площадь"}},
		{"no apartment column", []string{"Квартира", ColArea}},
		{"unrelated headers", []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := buildWorkbook(t, tt.headers, [][]string{{"1", "50.0"}})
			_, err := NewSurveyParser().Parse(buf)
			assert.ErrorIs(t, err, ErrBadSurveyFile)
		})
	}
}

func TestParseRejectsInvalidArea(t *testing.T) {
	tests := []struct {
		name string
		area string
	}{
		{"not a number", "пятьдесят"},
		{"zero", "0"},
		{"negative", "-12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := buildWorkbook(t,
				[]string{ColApartment, ColArea},
				[][]string{{"1", tt.area}})
			_, err := NewSurveyParser().Parse(buf)
			assert.ErrorIs(t, err, ErrBadSurveyFile)
		})
	}
}

func TestParseRejectsNonWorkbook(t *testing.T) {
	_, err := NewSurveyParser().Parse(bytes.NewBufferString("definitely not a zip archive"))
	assert.ErrorIs(t, err, ErrBadSurveyFile)
}
