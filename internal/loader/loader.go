package loader

import (
	"fmt"
	"log/slog"
	"strings"

	"isrr-engine/internal/catalog"
	"isrr-engine/internal/rating"
	"isrr-engine/internal/rules"
)

// EGIDColumnVariations lists the header spellings the entity-id column
// appears under across source extracts, tried in order.
var EGIDColumnVariations = []string{
	"EGID", "egid", "Egid", "EgId",
	"Engagementid", "EngagementId", "engagement_id",
}

// Column names per input relation.
const (
	colVarName           = "variables"
	colVarGroup          = "group"
	colVarType           = "type"
	colVarCategory       = "category"
	colVarClassification = "data_classification"

	colMainVolume       = "Tpmaxrecordscanprocess"
	colMainFormat       = "Isdataelecform"
	colMainConnectivity = "Systemconnectivity"
	colMainBaseline     = "Isrrvalue"

	colInterimNature   = "Nature of Data"
	colInterimBankData = "Bank Data"
	colInterimRating   = "Interim ISRR"

	colFinalModifier     = "Modifier"
	colFinalVolume       = "Volume"
	colFinalFormat       = "Data format"
	colFinalConnectivity = "System Connectivity"
	colFinalRating       = "Final ISRR"
)

// egidColumn resolves the entity-id column of a table, trying each known
// header variant in order.
func egidColumn(t *Table) (int, error) {
	for _, name := range EGIDColumnVariations {
		if idx := t.ColumnIndex(name); idx >= 0 {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%s: no EGID column found (tried %s)",
		t.Name, strings.Join(EGIDColumnVariations, ", "))
}

// LoadCatalog builds the variable metadata catalog from the variables
// sheet.
func LoadCatalog(t *Table) (*catalog.Catalog, error) {
	nameIdx, err := t.RequireColumn(colVarName)
	if err != nil {
		return nil, err
	}
	groupIdx, err := t.RequireColumn(colVarGroup)
	if err != nil {
		return nil, err
	}
	typeIdx, err := t.RequireColumn(colVarType)
	if err != nil {
		return nil, err
	}
	categoryIdx := t.ColumnIndex(colVarCategory)
	classIdx := t.ColumnIndex(colVarClassification)

	var vars []catalog.Variable
	for i, row := range t.Rows {
		name := t.Cell(row, nameIdx)
		if name == "" {
			continue // blank spreadsheet padding rows
		}
		varType, err := catalog.ParseVariableType(t.Cell(row, typeIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d (%s): %w", t.Name, i+2, name, err)
		}
		vars = append(vars, catalog.Variable{
			Name:           name,
			Group:          t.Cell(row, groupIdx),
			Type:           varType,
			Category:       t.Cell(row, categoryIdx),
			Classification: t.Cell(row, classIdx),
		})
	}
	return catalog.NewCatalog(vars)
}

// mainAttributes is one EGID's row of the main attribute sheet, already
// normalized.
type mainAttributes struct {
	volume       string
	format       string
	connectivity string
	baseline     *rating.Level
}

// loadMainAttributes indexes the main sheet by cleaned EGID.
func loadMainAttributes(t *Table, logger *slog.Logger) (map[string]mainAttributes, error) {
	egidIdx, err := egidColumn(t)
	if err != nil {
		return nil, err
	}
	volumeIdx := t.ColumnIndex(colMainVolume)
	formatIdx := t.ColumnIndex(colMainFormat)
	connectivityIdx := t.ColumnIndex(colMainConnectivity)
	baselineIdx := t.ColumnIndex(colMainBaseline)

	out := make(map[string]mainAttributes, len(t.Rows))
	for _, row := range t.Rows {
		egid := t.Cell(row, egidIdx)
		if egid == "" {
			continue
		}
		if _, dup := out[egid]; dup {
			continue // keep first occurrence
		}
		attrs := mainAttributes{
			volume:       NormalizeVolume(t.Cell(row, volumeIdx)),
			format:       NormalizeFormat(t.Cell(row, formatIdx)),
			connectivity: NormalizeConnectivity(t.Cell(row, connectivityIdx)),
		}
		if raw := t.Cell(row, baselineIdx); raw != "" && !strings.EqualFold(raw, "n/a") {
			level, err := rating.ParseLevel(raw)
			if err != nil {
				logger.Warn("ignoring unparseable baseline rating",
					slog.String("egid", egid), slog.String("value", raw))
			} else {
				attrs.baseline = &level
			}
		}
		out[egid] = attrs
	}
	return out, nil
}

// LoadEntities joins the flag matrix with the main attribute sheet into
// entity records. The flag matrix drives the entity set; EGIDs are
// trimmed, blanks dropped and duplicates kept-first. Flag columns are
// validated against the catalog so unknown variables fail here, not in
// the grouper.
func LoadEntities(flags, main *Table, cat *catalog.Catalog, logger *slog.Logger) ([]catalog.Entity, error) {
	if logger == nil {
		logger = slog.Default()
	}
	egidIdx, err := egidColumn(flags)
	if err != nil {
		return nil, err
	}

	// Every non-EGID flag column must be a catalogued variable.
	type flagColumn struct {
		index int
		name  string
	}
	var flagCols []flagColumn
	for i, h := range flags.Headers {
		if i == egidIdx {
			continue
		}
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if _, ok := cat.Lookup(name); !ok {
			return nil, fmt.Errorf("%s: flag column %q is not in the variable catalog", flags.Name, name)
		}
		flagCols = append(flagCols, flagColumn{index: i, name: name})
	}

	attrs, err := loadMainAttributes(main, logger)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(flags.Rows))
	var entities []catalog.Entity
	dropped := 0
	for i, row := range flags.Rows {
		egid := flags.Cell(row, egidIdx)
		if egid == "" {
			dropped++
			continue
		}
		if seen[egid] {
			dropped++
			continue
		}
		seen[egid] = true

		flagValues := make(map[string]bool, len(flagCols))
		for _, fc := range flagCols {
			value, ok := ParseFlag(flags.Cell(row, fc.index))
			if !ok {
				return nil, fmt.Errorf("%s row %d: flag %q has non-boolean value %q",
					flags.Name, i+2, fc.name, flags.Cell(row, fc.index))
			}
			flagValues[fc.name] = value
		}

		e := catalog.Entity{
			EGID:         egid,
			Flags:        flagValues,
			Volume:       rules.Wildcard,
			Format:       rules.Wildcard,
			Connectivity: rules.Wildcard,
		}
		if a, ok := attrs[egid]; ok {
			e.Volume = a.volume
			e.Format = a.format
			e.Connectivity = a.connectivity
			e.Baseline = a.baseline
		}
		entities = append(entities, e)
	}
	if dropped > 0 {
		logger.Info("dropped blank or duplicate EGIDs from flag matrix", slog.Int("count", dropped))
	}
	return entities, nil
}

// LoadInterimTable parses and validates the interim rule sheet.
func LoadInterimTable(t *Table) (*rules.InterimTable, error) {
	natureIdx, err := t.RequireColumn(colInterimNature)
	if err != nil {
		return nil, err
	}
	bankIdx, err := t.RequireColumn(colInterimBankData)
	if err != nil {
		return nil, err
	}
	ratingIdx, err := t.RequireColumn(colInterimRating)
	if err != nil {
		return nil, err
	}

	var rows []rules.InterimRule
	for i, row := range t.Rows {
		if t.Cell(row, natureIdx) == "" && t.Cell(row, bankIdx) == "" {
			continue
		}
		pattern, err := rules.ParsePattern(t.Cell(row, natureIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		tier, err := rules.ParseTier(t.Cell(row, bankIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		level, err := rating.ParseLevel(t.Cell(row, ratingIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		rows = append(rows, rules.InterimRule{
			ID:      i + 1,
			Tier:    tier,
			Pattern: pattern,
			Rating:  level,
		})
	}
	return rules.NewInterimTable(rows)
}

// LoadFinalTable parses and validates the final rule sheet. Criterion
// cells may carry several values separated by "|".
func LoadFinalTable(t *Table) (*rules.FinalTable, error) {
	modifierIdx, err := t.RequireColumn(colFinalModifier)
	if err != nil {
		return nil, err
	}
	volumeIdx, err := t.RequireColumn(colFinalVolume)
	if err != nil {
		return nil, err
	}
	formatIdx, err := t.RequireColumn(colFinalFormat)
	if err != nil {
		return nil, err
	}
	connectivityIdx, err := t.RequireColumn(colFinalConnectivity)
	if err != nil {
		return nil, err
	}
	ratingIdx, err := t.RequireColumn(colFinalRating)
	if err != nil {
		return nil, err
	}

	var rows []rules.FinalRule
	for i, row := range t.Rows {
		resultRaw := t.Cell(row, ratingIdx)
		if resultRaw == "" && t.Cell(row, modifierIdx) == "" {
			continue
		}
		result, err := rating.ParseLevel(resultRaw)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		modifier, err := rules.ParseModifier(t.Cell(row, modifierIdx), result)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		rows = append(rows, rules.FinalRule{
			ID:           i + 1,
			Volume:       parseCriterion(t.Cell(row, volumeIdx)),
			Format:       parseCriterion(t.Cell(row, formatIdx)),
			Connectivity: parseCriterion(t.Cell(row, connectivityIdx)),
			Modifier:     modifier,
			Result:       result,
		})
	}
	return rules.NewFinalTable(rows)
}

func parseCriterion(cell string) rules.Criterion {
	return rules.NewCriterion(strings.Split(cell, "|")...)
}

// Paths names the five input files of a run.
type Paths struct {
	Variables    string
	Flags        string
	Main         string
	InterimRules string
	FinalRules   string
}

// Bundle is everything a run needs, loaded and validated.
type Bundle struct {
	Catalog  *catalog.Catalog
	Entities []catalog.Entity
	Interim  *rules.InterimTable
	Final    *rules.FinalTable
}

// LoadAll reads and validates all five relations. Any table-level
// problem aborts before processing begins.
func LoadAll(p Paths, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	variablesTable, err := ReadTable(p.Variables)
	if err != nil {
		return nil, err
	}
	cat, err := LoadCatalog(variablesTable)
	if err != nil {
		return nil, fmt.Errorf("loading variable catalog: %w", err)
	}
	logger.Info("loaded variable catalog", slog.Int("variables", cat.Len()))

	flagsTable, err := ReadTable(p.Flags)
	if err != nil {
		return nil, err
	}
	mainTable, err := ReadTable(p.Main)
	if err != nil {
		return nil, err
	}
	entities, err := LoadEntities(flagsTable, mainTable, cat, logger)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}
	logger.Info("loaded entities", slog.Int("count", len(entities)))

	interimTable, err := ReadTable(p.InterimRules)
	if err != nil {
		return nil, err
	}
	interim, err := LoadInterimTable(interimTable)
	if err != nil {
		return nil, fmt.Errorf("loading interim rules: %w", err)
	}

	finalTable, err := ReadTable(p.FinalRules)
	if err != nil {
		return nil, err
	}
	final, err := LoadFinalTable(finalTable)
	if err != nil {
		return nil, fmt.Errorf("loading final rules: %w", err)
	}
	logger.Info("loaded rule tables",
		slog.Int("interim_rules", interim.Len()),
		slog.Int("final_rules", final.Len()))

	return &Bundle{Catalog: cat, Entities: entities, Interim: interim, Final: final}, nil
}
