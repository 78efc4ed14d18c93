package parsers

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/xuri/excelize/v2"
)

// Column headers of the survey template. The uploaded workbook must carry both
// or it is rejected as not being a filled template.
const (
	ColApartment = "Номер квартиры"
	ColArea      = "КадастроваяПлощадь"
)

// ErrBadSurveyFile marks an upload that is not a correctly filled template.
var ErrBadSurveyFile = errors.New("survey file is not a valid filled template")

// SurveyParser defines the interface for reading an uploaded survey workbook.
type SurveyParser interface {
	Parse(file io.Reader) ([]models.SurveyRecord, error)
}

type excelSurveyParser struct{}

func NewSurveyParser() SurveyParser {
	return &excelSurveyParser{}
}

// Parse reads the filled survey template. Rows with an empty area cell are
// skipped (the operator fills in only the units that were surveyed); a
// non-numeric or non-positive area fails the whole file.
func (p *excelSurveyParser) Parse(file io.Reader) ([]models.SurveyRecord, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSurveyFile, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSurveyFile, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: workbook has no rows", ErrBadSurveyFile)
	}

	apartmentCol, areaCol := -1, -1
	for i, header := range rows[0] {
		switch strings.TrimSpace(header) {
		case ColApartment:
			apartmentCol = i
		case ColArea:
			areaCol = i
		}
	}
	if apartmentCol < 0 || areaCol < 0 {
		return nil, fmt.Errorf("%w: missing required columns %q and %q", ErrBadSurveyFile, ColApartment, ColArea)
	}

	var records []models.SurveyRecord
	for rowIdx, row := range rows[1:] {
		apartment := cellAt(row, apartmentCol)
		area := cellAt(row, areaCol)
		if apartment == "" || area == "" {
			continue
		}

		// Operators sometimes type areas with a comma decimal separator.
		value, parseErr := strconv.ParseFloat(strings.ReplaceAll(area, ",", "."), 64)
		if parseErr != nil || value <= 0 {
			return nil, fmt.Errorf("%w: row %d has invalid area %q", ErrBadSurveyFile, rowIdx+2, area)
		}

		records = append(records, models.SurveyRecord{PropertyID: apartment, Area: value})
	}
	return records, nil
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
