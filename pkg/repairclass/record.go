package repairclass

import "github.com/crimson-sun/repairclass/internal/model"

// Record is a repair record to classify. Empty fields are treated as missing.
// This is the stable public type; internal representations may evolve
// independently.
type Record struct {
	Symptom string // free-text symptom description
	Fault   string // free-text fault / repair description

	CodeCondition string
	CodeSymptom   string
	CodeSection   string
	CodeRepair    string
	CodeFault     string
	Partcode      string
	RepairStatus  string
	Act           string
}

// Result is the classification of one record.
type Result struct {
	Category      string             `json:"category"`
	Confidence    float64            `json:"confidence"` // probability of Category
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

func (r Record) internal(row int) model.RepairRecord {
	rec := model.RepairRecord{Row: row, Symptom: r.Symptom, Fault: r.Fault}
	rec.Codes[model.CodeCondition] = r.CodeCondition
	rec.Codes[model.CodeSymptom] = r.CodeSymptom
	rec.Codes[model.CodeSection] = r.CodeSection
	rec.Codes[model.CodeRepair] = r.CodeRepair
	rec.Codes[model.CodeFault] = r.CodeFault
	rec.Codes[model.Partcode] = r.Partcode
	rec.Codes[model.RepairStatus] = r.RepairStatus
	rec.Codes[model.Act] = r.Act
	return rec
}

func resultFromPrediction(p model.Prediction) Result {
	return Result{
		Category:      p.Category,
		Confidence:    p.Confidence,
		Probabilities: p.Probabilities,
	}
}
