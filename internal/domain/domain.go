package domain

// Outcome statuses reported by the browser extension for one target page.
const (
	StatusFollow          = "follow"
	StatusAlreadyFollowed = "already followed"
	StatusError           = "error"
)

// Outcome is the terminal result of one follow attempt.
type Outcome struct {
	URL    string `json:"url"`
	Status string `json:"status" enum:"follow,already followed,error"`
	Reason string `json:"reason,omitempty"`
}

func (o Outcome) IsError() bool { return o.Status == StatusError }

// Report is the payload the extension posts back to the callback server.
type Report struct {
	TaskID string `json:"task_id"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Task is one in-flight attempt to act on a target URL. The ID is freshly
// generated per attempt and never reused.
type Task struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Port      int    `json:"port"`
	Duration  int    `json:"duration"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Company struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Link      string `json:"link"`
	Processed bool   `json:"processed"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Employee struct {
	ID        int64    `json:"id"`
	Link      string   `json:"link"`
	CompanyID int64    `json:"company_id"`
	Company   *Company `json:"company,omitempty"`
	Processed bool     `json:"processed"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// Stats summarizes processing progress for one record kind.
type Stats struct {
	Total     int     `json:"total"`
	Processed int     `json:"processed"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent_processed"`
}

// Event is one append-only action log row.
type Event struct {
	ID     int64  `json:"id"`
	TS     string `json:"ts" format:"date-time"`
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}
