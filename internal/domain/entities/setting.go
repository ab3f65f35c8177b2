package entities

import "time"

// Setting is a reference-data row describing an equipment parameter
// (nominal values, thresholds, documentation pointers). Read-mostly; kept as
// a candidate retrieval source.
type Setting struct {
	ID            string    `json:"id" db:"id"`
	Brand         string    `json:"brand" db:"brand"`
	EquipmentType string    `json:"equipmentType" db:"equipment_type"`
	Model         string    `json:"model" db:"model"`
	Category      string    `json:"category" db:"category"`
	Name          string    `json:"name" db:"name"`
	Value         string    `json:"value" db:"value"`
	Unit          string    `json:"unit" db:"unit"`
	Country       string    `json:"country" db:"country"`
	SourceDoc     string    `json:"sourceDoc" db:"source_doc"`
	PageNumber    int       `json:"pageNumber" db:"page_number"`
	Notes         string    `json:"notes" db:"notes"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
