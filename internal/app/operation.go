package app

import "closet-go/internal/database"

// CommandOperation tracks a CLI command that changes account or collection
// state. Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type CommandOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
}

// NewCommandOperation creates a new in-memory operation that will be
// recorded as successful unless Fail is called.
func NewCommandOperation(operation, parameters string) *CommandOperation {
	return &CommandOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     database.StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *CommandOperation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *CommandOperation) Fail(err error) error {
	if err != nil {
		op.Status = database.StatusFailed
	}
	return err
}
