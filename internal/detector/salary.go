package detector

import (
	"context"

	"github.com/shopspring/decimal"

	"payguard/internal/detector/explain"
	"payguard/internal/detector/models"
)

// salaryPass checks each record's amount against the configured range for
// the registry entry's pay grade. The score is the normalized deviation
// magnitude clamped to 1.0. Grades without a configured range are skipped,
// not flagged; whether that silence is itself a data-completeness gap is an
// open policy question, so skips are at least counted.
func (e *Engine) salaryPass(ctx context.Context, snap *snapshot) ([]models.Flag, error) {
	var flags []models.Flag
	for _, record := range snap.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, known := snap.entries[record.IdentityHash]
		if !known || entry.PayGrade == "" {
			continue
		}
		bounds, configured := e.grades[entry.PayGrade]
		if !configured {
			if e.metrics != nil {
				e.metrics.SalarySkipped.Inc()
			}
			continue
		}

		switch {
		case record.Amount.LessThan(bounds.Min):
			score := clampScore(bounds.Min.Sub(record.Amount).Div(bounds.Min))
			flags = append(flags, newFlag(snap.batchID, record.IdentityHash, models.TypeSalaryAnomaly, score,
				explain.SalaryBelow(record.Amount, bounds.Min, entry.PayGrade),
				salaryMetadata(record.Amount, bounds, entry.PayGrade, "below")))
		case record.Amount.GreaterThan(bounds.Max):
			score := clampScore(record.Amount.Sub(bounds.Max).Div(bounds.Max))
			flags = append(flags, newFlag(snap.batchID, record.IdentityHash, models.TypeSalaryAnomaly, score,
				explain.SalaryAbove(record.Amount, bounds.Max, entry.PayGrade),
				salaryMetadata(record.Amount, bounds, entry.PayGrade, "above")))
		}
	}
	return flags, nil
}

func clampScore(deviation decimal.Decimal) float64 {
	score := deviation.InexactFloat64()
	if score > 1.0 {
		return 1.0
	}
	return score
}

func salaryMetadata(amount decimal.Decimal, bounds GradeRange, grade, direction string) map[string]string {
	return map[string]string{
		"grade":     grade,
		"amount":    amount.String(),
		"min":       bounds.Min.String(),
		"max":       bounds.Max.String(),
		"direction": direction,
	}
}
