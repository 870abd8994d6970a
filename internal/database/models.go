package database

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Annotation statuses.
const (
	StatusOK           = "ok"
	StatusProcessError = "process_error"
	StatusParseError   = "parse_error"
)

// Run is one invocation of the batch annotator.
type Run struct {
	ID           string
	InputPath    string
	OutputPath   string
	Provider     string
	Model        string
	Status       string
	RowCount     int
	FailureCount int
	Error        *string
	StartedAt    *string
	FinishedAt   *string
}

// Annotation is one output row as recorded in the journal.
type Annotation struct {
	RunID     string
	RowIndex  int
	Comment   string
	Summary   string
	Theme     string
	Status    string
	ErrorText *string
	CreatedAt *string
}

// ThemeCount is the number of annotated rows sharing a theme.
type ThemeCount struct {
	Theme string
	Count int
}
