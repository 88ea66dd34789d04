package paper

// Status is the phase reported in a progress snapshot.
type Status string

const (
	StatusCrawling    Status = "crawling"
	StatusRateLimited Status = "rate_limited"
	StatusAnalyzing   Status = "analyzing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Progress is an ephemeral snapshot of a running build.
type Progress struct {
	Status       Status `json:"status"`
	Progress     int    `json:"progress"`
	Total        int    `json:"total"`
	Message      string `json:"message"`
	CurrentPaper string `json:"current_paper,omitempty"`
}

// ProgressFunc receives progress snapshots. It runs inline with the build
// and must return quickly.
type ProgressFunc func(Progress)

// Report invokes f if it is non-nil.
func (f ProgressFunc) Report(p Progress) {
	if f != nil {
		f(p)
	}
}
