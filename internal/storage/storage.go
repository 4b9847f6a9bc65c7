package storage

import "v2stats/internal/model"

// Storage defines a sink for computed reports.
type Storage interface {
	PutReport(report model.Report) error
}
