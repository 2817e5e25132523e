package scheduler

// Summary is what one scheduler invocation reports back to its trigger.
// Errors holds one human-readable string per failed item, in processing
// order.
type Summary struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}
