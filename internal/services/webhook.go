package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// extractedFieldColumns maps the French field labels delivered by the
// extraction webhook onto document columns.
var extractedFieldColumns = map[string]string{
	"Numéro d'amorce":               "amorce_number",
	"Cuve":                          "cuve",
	"Numéro de section":             "section_number",
	"Machine":                       "machine",
	"Métrage":                       "metrage",
	"Type de câble":                 "cable_type",
	"Diamètre du câble":             "cable_diameter",
	"Type d'activité":               "activity_type",
	"Côté":                          "cote",
	"Numéro d'équipement":           "equipment_number",
	"Numéro d'extrémité":            "extremite_number",
	"Numéro d'extrémité inférieure": "extremite_inf_number",
	"Numéro d'extrémité supérieure": "extremite_sup_number",
	"Fibres":                        "fibers",
	"Numéro de longueur":            "length_number",
	"Type de plan":                  "plan_type",
	"Version du plan":               "plan_version",
	"Recette":                       "recette",
	"Scénario":                      "scenario",
	"Segment":                       "segment",
}

// numericFieldColumns lists the columns whose values must be parsed as
// numbers after cleaning.
var numericFieldColumns = map[string]bool{
	"metrage":        true,
	"cable_diameter": true,
}

// WebhookFunction ingests the business fields extracted from a processed
// document and writes them onto the document row.
type WebhookFunction struct {
	documents DocumentStore
}

// NewWebhook creates a WebhookFunction.
func NewWebhook(documents DocumentStore) *WebhookFunction {
	return &WebhookFunction{documents: documents}
}

// Process applies the extracted values to the document and marks it
// completed. Unknown labels are logged and skipped; numeric fields that stay
// unparseable after cleaning are skipped rather than failing the whole
// update.
func (f *WebhookFunction) Process(ctx context.Context, documentID uuid.UUID, values map[string]string) error {
	logCtx := slog.With("documentId", documentID.String())

	fields := make(map[string]interface{}, len(values))
	for label, raw := range values {
		column, ok := extractedFieldColumns[label]
		if !ok {
			logCtx.Warn("Unknown extracted field, skipping.", "label", label)
			continue
		}

		if numericFieldColumns[column] {
			number, err := parseNumeric(raw)
			if err != nil {
				logCtx.Warn("Unparseable numeric field, skipping.",
					"label", label, "value", raw, "error", err)
				continue
			}
			fields[column] = number
			continue
		}

		fields[column] = strings.TrimSpace(raw)
	}

	if len(fields) == 0 {
		return fmt.Errorf("no usable extracted fields in payload")
	}

	if err := f.documents.ApplyExtractedFields(ctx, documentID, fields); err != nil {
		return fmt.Errorf("failed to apply extracted fields: %w", err)
	}
	logCtx.Info("Extracted fields applied.", "fieldCount", len(fields))
	return nil
}

// parseNumeric strips everything but digits and dots from a raw value
// ("1 234.5 m" and similar) and parses the remainder as a float.
func parseNumeric(raw string) (float64, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("no digits in %q", raw)
	}
	return strconv.ParseFloat(cleaned, 64)
}
