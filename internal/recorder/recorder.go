package recorder

import "DCAScanner/internal/model"

// ScanRun groups the results of one scan pass.
type ScanRun struct {
	Trigger string // "CRON", "COMMAND" or "STARTUP"
	Results []*model.ScoreResult
}

// SummaryEvent records a portfolio summary at a point in time.
type SummaryEvent struct {
	PortfolioID string
	Summary     model.PortfolioSummary
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordScan(run *ScanRun) error
	RecordSummary(evt *SummaryEvent) error
	Close() error
}
