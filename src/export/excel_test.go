package export

import (
	"strings"
	"testing"

	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/parsers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSurveyTemplate(t *testing.T) {
	buf, err := SurveyTemplate([]string{"1", "2", "15а"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, templateSheet, f.GetSheetName(0))
	rows, err := f.GetRows(templateSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, parsers.ColApartment, rows[0][0])
	assert.Equal(t, parsers.ColArea, rows[0][1])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "15а", rows[3][0])
}

// The generated template, once filled in, must parse back through the survey
// parser.
func TestSurveyTemplateRoundTripsThroughParser(t *testing.T) {
	buf, err := SurveyTemplate([]string{"1", "2"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetCellValue(templateSheet, "B2", "50.5"))
	require.NoError(t, f.SetCellValue(templateSheet, "B3", "48,2"))
	filled, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, err := parsers.NewSurveyParser().Parse(filled)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].PropertyID)
	assert.InDelta(t, 50.5, records[0].Area, 1e-9)
	assert.InDelta(t, 48.2, records[1].Area, 1e-9)
}

func TestSurveyTemplateEmptyHouse(t *testing.T) {
	buf, err := SurveyTemplate(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(templateSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func checkerboardUnits() []crm.Unit {
	return []crm.Unit{
		{PropertyID: "1", Section: 1, Floor: 1, ContractArea: 50.0},
		{PropertyID: "2", Section: 1, Floor: 1, ContractArea: 48.0},
		{PropertyID: "3", Section: 1, Floor: 2, ContractArea: 52.0},
		{PropertyID: "4", Section: 2, Floor: 1, ContractArea: 61.0},
	}
}

func TestCheckerboardSheets(t *testing.T) {
	buf, err := Checkerboard(checkerboardUnits(),
		map[string]float64{"1": 50.3},
		map[string]float64{"1": 0.3})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.ElementsMatch(t, []string{"1. Расхождения", "2. Данные из файла", "3. Данные из БД"}, sheets)
}

func TestCheckerboardLayout(t *testing.T) {
	buf, err := Checkerboard(checkerboardUnits(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("3. Данные из БД")
	require.NoError(t, err)

	// Section 1: header, floor 2 (top first), floor 1, spacer; then section 2.
	require.GreaterOrEqual(t, len(rows), 6)
	assert.Equal(t, "Подъезд 1", rows[0][0])
	assert.Equal(t, "Этаж 2", rows[1][0])
	assert.Contains(t, rows[1][1], "3")
	assert.Equal(t, "Этаж 1", rows[2][0])
	require.GreaterOrEqual(t, len(rows[2]), 3, "floor 1 of section 1 holds two units")
	assert.Equal(t, "Подъезд 2", rows[4][0])
	assert.Equal(t, "Этаж 1", rows[5][0])
}

func TestCheckerboardCellAnnotations(t *testing.T) {
	units := []crm.Unit{{PropertyID: "1", Section: 1, Floor: 1, ContractArea: 50.0}}
	buf, err := Checkerboard(units,
		map[string]float64{"1": 52.5},
		map[string]float64{"1": 2.5})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	diffCell, err := f.GetCellValue("1. Расхождения", "B2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diffCell, "1"), "cell starts with the apartment number")
	assert.Contains(t, diffCell, "+2.50")

	surveyCell, err := f.GetCellValue("2. Данные из файла", "B2")
	require.NoError(t, err)
	assert.Contains(t, surveyCell, "52.50")

	dbCell, err := f.GetCellValue("3. Данные из БД", "B2")
	require.NoError(t, err)
	assert.Contains(t, dbCell, "50.00")
}
