package detector

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// GradeRange is the configured compensation band for one pay grade.
type GradeRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// GradeTable maps pay grade codes to their configured ranges. What counts as
// a correct salary is business policy supplied as static configuration, not
// something the engine decides.
type GradeTable map[string]GradeRange

// ParseGradeTable decodes a JSON table of the form
// {"GL07": {"min": "30000", "max": "80000"}}.
func ParseGradeTable(raw string) (GradeTable, error) {
	if raw == "" {
		return GradeTable{}, nil
	}
	var decoded map[string]struct {
		Min decimal.Decimal `json:"min"`
		Max decimal.Decimal `json:"max"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("parse grade table: %w", err)
	}
	table := make(GradeTable, len(decoded))
	for grade, r := range decoded {
		if r.Min.IsNegative() || !r.Max.IsPositive() || r.Max.LessThan(r.Min) {
			return nil, fmt.Errorf("parse grade table: grade %s has invalid range [%s, %s]", grade, r.Min, r.Max)
		}
		table[grade] = GradeRange{Min: r.Min, Max: r.Max}
	}
	return table, nil
}
