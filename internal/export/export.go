package export

import (
	"errors"
	"fmt"
	"strings"

	"mealplan-cli/internal/model"

	"github.com/xuri/excelize/v2"
)

var Header = []any{"group_id", "group", "position", "recipe_id", "recipe"}

// Row is one recipe placement within a grouping.
type Row struct {
	GroupID   string
	GroupName string
	Position  int
	RecipeID  string
	Recipe    string
}

// Rows flattens one grouping in render order. Positions are 1-based.
func Rows(gr *model.Grouping, recipes model.Catalog) []Row {
	var out []Row
	for _, g := range gr.Ordered() {
		for i, rid := range g.RecipeIDs {
			out = append(out, Row{
				GroupID:   g.ID,
				GroupName: g.Name,
				Position:  i + 1,
				RecipeID:  rid,
				Recipe:    recipes.Name(rid),
			})
		}
	}
	return out
}

// SheetName turns a grouping key into a valid worksheet name.
func SheetName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(key))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "grouping"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// WriteXLSX writes one worksheet per grouping, in grouping order.
func WriteXLSX(path string, gs *model.Groupings, recipes model.Catalog) error {
	if gs == nil || len(gs.Keys) == 0 {
		return errors.New("export: nothing to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	for i, key := range gs.Keys {
		gr, _ := gs.Get(key)
		sheet := SheetName(key)
		for n := 2; used[sheet]; n++ {
			sheet = SheetName(fmt.Sprintf("%s_%d", key, n))
		}
		used[sheet] = true

		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeSheet(f, sheet, Rows(gr, recipes)); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
	}
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, rows []Row) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", Header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, []any{r.GroupID, r.GroupName, r.Position, r.RecipeID, r.Recipe}); err != nil {
			return err
		}
	}
	return sw.Flush()
}
