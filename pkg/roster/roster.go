package roster

// Store defines the interface for an ordered collection of student records.
// Implementations of this interface can be swapped out,
// allowing for different backends (e.g., in-memory, Raft-replicated).
type Store interface {
	// Add appends a record to the end of the sequence.
	// No duplicate check is made on the roll number.
	Add(record Record) error

	// Remove deletes every record whose roll number matches.
	// Removing a roll number that is not present is a no-op.
	Remove(rollNumber int) error

	// Search returns the earliest-inserted record with the given roll number,
	// or a zero Record and false if none matches.
	Search(rollNumber int) (Record, bool)

	// List returns a copy of the full sequence in insertion order.
	List() []Record

	// Save writes the whole sequence to path.
	// Failures are reported as *IOError.
	Save(path string) error

	// Load replaces the whole sequence with the one stored at path.
	// The current sequence is untouched unless decoding succeeds.
	// Failures are reported as *IOError or *DecodeError.
	Load(path string) error
}
