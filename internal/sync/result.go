// Package sync drives document mutations against the docx API: batched
// uploads, reads, and clears.
package sync

// Actions for Result.Action.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionAppend = "append"
	ActionClear  = "clear"
)

// Result is the JSON record a command prints on success: which document was
// touched, what was done, and the counts that apply to that action. Count
// fields are pointers so actions only report the numbers they produced.
type Result struct {
	DocURL        string `json:"docUrl"`
	Action        string `json:"action"`
	BlocksAdded   *int   `json:"blocksAdded,omitempty"`
	Batches       *int   `json:"batches,omitempty"`
	BlockCount    *int   `json:"blockCount,omitempty"`
	BlocksDeleted *int   `json:"blocksDeleted,omitempty"`
	Markdown      string `json:"markdown,omitempty"`
	RawContent    string `json:"rawContent,omitempty"`
	Status        string `json:"status"`
}

// Count wraps a value for the Result's optional count fields.
func Count(n int) *int {
	return &n
}
