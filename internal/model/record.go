package model

// Field identifies one of the categorical service-code columns of a repair record.
type Field int

const (
	CodeCondition Field = iota // product condition code
	CodeSymptom                // symptom code
	CodeSection                // faulty section code
	CodeRepair                 // repair operation code
	CodeFault                  // fault code
	Partcode                   // spare part code
	RepairStatus               // repair status
	Act                        // issued repair act code

	NumFields = int(Act) + 1
)

// CategoricalFields lists the categorical fields in feature-matrix order.
var CategoricalFields = []Field{
	CodeCondition,
	CodeSymptom,
	CodeSection,
	CodeRepair,
	CodeFault,
	Partcode,
	RepairStatus,
	Act,
}

var fieldColumns = [NumFields]string{
	CodeCondition: "Code_condition",
	CodeSymptom:   "Code_symptom",
	CodeSection:   "Code_section",
	CodeRepair:    "Code_repair",
	CodeFault:     "Code_fault",
	Partcode:      "Partcode",
	RepairStatus:  "Repair_status",
	Act:           "Act",
}

var fieldNames = [NumFields]string{
	CodeCondition: "code_condition",
	CodeSymptom:   "code_symptom",
	CodeSection:   "code_section",
	CodeRepair:    "code_repair",
	CodeFault:     "code_fault",
	Partcode:      "part_code",
	RepairStatus:  "repair_status",
	Act:           "act_code",
}

// Column returns the dataset column header for the field.
func (f Field) Column() string {
	if f < 0 || int(f) >= NumFields {
		return ""
	}
	return fieldColumns[f]
}

// String returns the snake_case name used in logs, JSON and SQL.
func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Text column headers.
const (
	SymptomColumn  = "Symptom"
	FaultColumn    = "Fault"
	CategoryColumn = "Category"
)

// RepairRecord is one row of the repair dataset.
// Empty strings mean the source cell was absent.
type RepairRecord struct {
	Row      int               // 0-based data row in the source file
	Symptom  string            // free-text symptom description
	Fault    string            // free-text fault / repair description
	Codes    [NumFields]string // categorical codes indexed by Field
	Category string            // ground-truth label
}

// Code returns the value of a categorical field.
func (r RepairRecord) Code(f Field) string {
	return r.Codes[f]
}

// WithCode returns a copy of the record with one categorical field replaced.
func (r RepairRecord) WithCode(f Field, v string) RepairRecord {
	r.Codes[f] = v
	return r
}

// Complete reports whether the mandatory Symptom, Fault and Category fields are present.
func (r RepairRecord) Complete() bool {
	return r.Symptom != "" && r.Fault != "" && r.Category != ""
}
