package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/parsers"
	"github.com/xuri/excelize/v2"
)

const templateSheet = "Кадастр"

// SurveyTemplate builds the two-column workbook the operator fills with
// surveyed areas, pre-populated with the house's flat numbers.
func SurveyTemplate(flatNums []string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, fmt.Errorf("error naming template sheet: %w", err)
	}
	if err := f.SetCellValue(templateSheet, "A1", parsers.ColApartment); err != nil {
		return nil, fmt.Errorf("error writing template header: %w", err)
	}
	if err := f.SetCellValue(templateSheet, "B1", parsers.ColArea); err != nil {
		return nil, fmt.Errorf("error writing template header: %w", err)
	}
	for i, flat := range flatNums {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("error addressing template cell: %w", err)
		}
		if err := f.SetCellValue(templateSheet, cell, flat); err != nil {
			return nil, fmt.Errorf("error writing flat number %s: %w", flat, err)
		}
	}
	f.SetColWidth(templateSheet, "A", "A", 20)
	f.SetColWidth(templateSheet, "B", "B", 25)

	return f.WriteToBuffer()
}

// Checkerboard builds the three-sheet reconciliation workbook: area deltas
// with color indication, the uploaded survey data, and the CRM contract data.
// Units are laid out per section and floor.
func Checkerboard(units []crm.Unit, surveyAreas, areaDiffs map[string]float64) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newCheckerboardStyles(f)
	if err != nil {
		return nil, err
	}
	grid := buildGrid(units)

	if err := writeSheet(f, "1. Расхождения", grid, styles, func(u crm.Unit) (string, int) {
		diff, ok := areaDiffs[u.PropertyID]
		if !ok {
			return u.PropertyID, styles.cell
		}
		style := styles.cell
		if diff > 0.1 {
			style = styles.cellGreen
		} else if diff < -0.1 {
			style = styles.cellRed
		}
		return fmt.Sprintf("%s\n(%+.2f)", u.PropertyID, diff), style
	}); err != nil {
		return nil, err
	}

	if err := writeSheet(f, "2. Данные из файла", grid, styles, func(u crm.Unit) (string, int) {
		area, ok := surveyAreas[u.PropertyID]
		if !ok {
			return u.PropertyID, styles.cell
		}
		return fmt.Sprintf("%s\n(%.2f м²)", u.PropertyID, area), styles.cell
	}); err != nil {
		return nil, err
	}

	if err := writeSheet(f, "3. Данные из БД", grid, styles, func(u crm.Unit) (string, int) {
		return fmt.Sprintf("%s\n(%.2f м²)", u.PropertyID, u.ContractArea), styles.cell
	}); err != nil {
		return nil, err
	}

	f.DeleteSheet("Sheet1")
	return f.WriteToBuffer()
}

type checkerboardStyles struct {
	section   int
	floor     int
	cell      int
	cellGreen int
	cellRed   int
}

func newCheckerboardStyles(f *excelize.File) (*checkerboardStyles, error) {
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	section, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14}, Alignment: center, Border: border, Fill: fill("dee2e6"),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating section style: %w", err)
	}
	floor, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true}, Alignment: center, Border: border, Fill: fill("e9ecef"),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating floor style: %w", err)
	}
	cell, err := f.NewStyle(&excelize.Style{Alignment: center, Border: border})
	if err != nil {
		return nil, fmt.Errorf("error creating cell style: %w", err)
	}
	cellGreen, err := f.NewStyle(&excelize.Style{Alignment: center, Border: border, Fill: fill("d1e7dd")})
	if err != nil {
		return nil, fmt.Errorf("error creating green cell style: %w", err)
	}
	cellRed, err := f.NewStyle(&excelize.Style{Alignment: center, Border: border, Fill: fill("f8d7da")})
	if err != nil {
		return nil, fmt.Errorf("error creating red cell style: %w", err)
	}
	return &checkerboardStyles{section: section, floor: floor, cell: cell, cellGreen: cellGreen, cellRed: cellRed}, nil
}

type sectionGrid struct {
	section int
	floors  []floorRow
}

type floorRow struct {
	floor int
	units []crm.Unit
}

// buildGrid groups units into sections ordered ascending, floors descending
// (top floor first, the way a checkerboard reads).
func buildGrid(units []crm.Unit) []sectionGrid {
	bySection := make(map[int]map[int][]crm.Unit)
	for _, u := range units {
		if bySection[u.Section] == nil {
			bySection[u.Section] = make(map[int][]crm.Unit)
		}
		bySection[u.Section][u.Floor] = append(bySection[u.Section][u.Floor], u)
	}

	var sections []int
	for s := range bySection {
		sections = append(sections, s)
	}
	sort.Ints(sections)

	var grid []sectionGrid
	for _, s := range sections {
		var floors []int
		for fl := range bySection[s] {
			floors = append(floors, fl)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(floors)))

		sg := sectionGrid{section: s}
		for _, fl := range floors {
			sg.floors = append(sg.floors, floorRow{floor: fl, units: bySection[s][fl]})
		}
		grid = append(grid, sg)
	}
	return grid
}

func writeSheet(f *excelize.File, sheet string, grid []sectionGrid, styles *checkerboardStyles, cellText func(crm.Unit) (string, int)) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet %q: %w", sheet, err)
	}
	f.SetColWidth(sheet, "A", "A", 10)

	row := 1
	for _, sg := range grid {
		maxUnits := 0
		for _, fr := range sg.floors {
			if len(fr.units) > maxUnits {
				maxUnits = len(fr.units)
			}
		}

		headerCell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetRowHeight(sheet, row, 25)
		if err := f.SetCellValue(sheet, headerCell, fmt.Sprintf("Подъезд %d", sg.section)); err != nil {
			return fmt.Errorf("error writing section header: %w", err)
		}
		if maxUnits > 0 {
			endCell, _ := excelize.CoordinatesToCellName(maxUnits+1, row)
			if err := f.MergeCell(sheet, headerCell, endCell); err != nil {
				return fmt.Errorf("error merging section header: %w", err)
			}
			f.SetCellStyle(sheet, headerCell, endCell, styles.section)
		} else {
			f.SetCellStyle(sheet, headerCell, headerCell, styles.section)
		}
		row++

		for _, fr := range sg.floors {
			f.SetRowHeight(sheet, row, 30)
			floorCell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetCellValue(sheet, floorCell, fmt.Sprintf("Этаж %d", fr.floor)); err != nil {
				return fmt.Errorf("error writing floor label: %w", err)
			}
			f.SetCellStyle(sheet, floorCell, floorCell, styles.floor)

			for col, u := range fr.units {
				cell, _ := excelize.CoordinatesToCellName(col+2, row)
				content, style := cellText(u)
				if err := f.SetCellValue(sheet, cell, content); err != nil {
					return fmt.Errorf("error writing unit cell %s: %w", u.PropertyID, err)
				}
				f.SetCellStyle(sheet, cell, cell, style)
				colName, _ := excelize.ColumnNumberToName(col + 2)
				f.SetColWidth(sheet, colName, colName, 12)
			}
			row++
		}

		// Blank spacer row between sections.
		row++
	}
	return nil
}
