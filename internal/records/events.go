package records

// TopicRecordsImported is published after a successful import.
const TopicRecordsImported = "records.imported"

// ImportedEvent is the payload of TopicRecordsImported.
type ImportedEvent struct {
	UnitID string `json:"unitId"`
	Count  int    `json:"count"`
}
