package requirements

// EmptyChecklistInputError is returned when there are no combinations to
// consolidate. The upstream deal configuration has to be fixed first.
type EmptyChecklistInputError struct{}

func (e *EmptyChecklistInputError) Error() string {
	return "no requirement combinations to consolidate"
}
