package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"payguard/internal/batch/models"
	"payguard/internal/identity/hasher"
)

// ParseRows reads tabular payroll rows. The first row must be a header
// containing at least identity_hash and amount columns; extra columns are
// ignored. Rows failing minimal validation (missing or malformed hash,
// non-positive or non-numeric amount) are dropped from the batch silently —
// bad rows never abort ingestion. The second return value counts drops so
// callers can surface the figure.
func ParseRows(raw []byte) ([]models.PayrollRecord, int, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("parse batch: read header: %w", err)
	}
	hashCol, amountCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "identity_hash":
			hashCol = i
		case "amount":
			amountCol = i
		}
	}
	if hashCol < 0 || amountCol < 0 {
		return nil, 0, fmt.Errorf("parse batch: header must contain identity_hash and amount columns")
	}

	var records []models.PayrollRecord
	dropped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is a dropped row, not a failed batch.
			dropped++
			continue
		}
		if hashCol >= len(row) || amountCol >= len(row) {
			dropped++
			continue
		}
		identityHash := strings.ToLower(strings.TrimSpace(row[hashCol]))
		if !validHash(identityHash) {
			dropped++
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[amountCol]))
		if err != nil || !amount.IsPositive() {
			dropped++
			continue
		}
		records = append(records, models.PayrollRecord{
			IdentityHash: identityHash,
			Amount:       amount,
			Status:       models.RecordPending,
		})
	}
	return records, dropped, nil
}

func validHash(h string) bool {
	if len(h) != hasher.DigestLen {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}
