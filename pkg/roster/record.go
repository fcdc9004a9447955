package roster

import "fmt"

// Record is one student's name, roll number and grade.
// Fields are set at construction and never change.
type Record struct {
	name       string
	rollNumber int
	grade      string
}

// NewRecord stores the three fields verbatim. Validation is left to the caller.
func NewRecord(name string, rollNumber int, grade string) Record {
	return Record{
		name:       name,
		rollNumber: rollNumber,
		grade:      grade,
	}
}

func (r Record) Name() string    { return r.name }
func (r Record) RollNumber() int { return r.rollNumber }
func (r Record) Grade() string   { return r.grade }

// String renders the record the way the roster listing shows it.
func (r Record) String() string {
	return fmt.Sprintf("%s, Roll Number: %d, Grade: %s", r.name, r.rollNumber, r.grade)
}
