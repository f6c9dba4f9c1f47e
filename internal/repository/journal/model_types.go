package journal

type ModelType string

const ModelTypeDebts ModelType = "debts"

const (
	StatusParsed  = "parsed"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)
