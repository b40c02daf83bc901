// Package testdata embeds a small labelled repair corpus used by tests across
// the engine and pipeline packages.
package testdata

import (
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/crimson-sun/repairclass/internal/model"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a labelled repair record as it appears in the source sheet.
type CorpusEntry struct {
	Symptom       string `json:"symptom"`
	Fault         string `json:"fault"`
	CodeCondition string `json:"code_condition"`
	CodeSymptom   string `json:"code_symptom"`
	CodeSection   string `json:"code_section"`
	CodeRepair    string `json:"code_repair"`
	CodeFault     string `json:"code_fault"`
	Partcode      string `json:"partcode"`
	RepairStatus  string `json:"repair_status"`
	Act           string `json:"act"`
	Category      string `json:"category"`
}

// Record converts the entry into a raw RepairRecord at the given row.
func (e CorpusEntry) Record(row int) model.RepairRecord {
	r := model.RepairRecord{Row: row, Symptom: e.Symptom, Fault: e.Fault, Category: e.Category}
	r.Codes[model.CodeCondition] = e.CodeCondition
	r.Codes[model.CodeSymptom] = e.CodeSymptom
	r.Codes[model.CodeSection] = e.CodeSection
	r.Codes[model.CodeRepair] = e.CodeRepair
	r.Codes[model.CodeFault] = e.CodeFault
	r.Codes[model.Partcode] = e.Partcode
	r.Codes[model.RepairStatus] = e.RepairStatus
	r.Codes[model.Act] = e.Act
	return r
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Records returns the corpus as raw records in file order.
func Records() ([]model.RepairRecord, error) {
	entries, err := LoadCorpus()
	if err != nil {
		return nil, err
	}
	out := make([]model.RepairRecord, len(entries))
	for i, e := range entries {
		out[i] = e.Record(i)
	}
	return out, nil
}

// Header is the column order used by WriteCSV.
var Header = []string{
	model.SymptomColumn, model.FaultColumn, model.CategoryColumn,
	"Code_condition", "Code_symptom", "Code_section", "Code_repair", "Code_fault",
	"Partcode", "Act", "Repair_status",
}

// WriteCSV writes the records to path as a dataset sheet with Header columns.
func WriteCSV(path string, records []model.RepairRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Symptom, r.Fault, r.Category,
			r.Code(model.CodeCondition), r.Code(model.CodeSymptom), r.Code(model.CodeSection),
			r.Code(model.CodeRepair), r.Code(model.CodeFault), r.Code(model.Partcode),
			r.Code(model.Act), r.Code(model.RepairStatus),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
