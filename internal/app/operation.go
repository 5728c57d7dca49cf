package app

import "strings"

// Run statuses recorded in the history database.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks a CLI command that changes the catalog.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
}

// NewOperation creates a new in-memory operation. args are joined into the
// recorded parameters.
func NewOperation(name string, args ...string) *Operation {
	return &Operation{
		Name:       name,
		Parameters: strings.Join(args, " "),
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = StatusError
	}
	return err
}
