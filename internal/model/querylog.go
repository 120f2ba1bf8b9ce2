package model

import "time"

// QueryLog records one served /data request.
// It is a pure domain model; persistence lives in the repository layer.
type QueryLog struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	DatasetID   string    `json:"package_id"`
	Year        int       `json:"ano"`
	Month       *int      `json:"mes,omitempty"`
	NameFilter  *string   `json:"nome_reservatorio,omitempty"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
	ResourceURL string    `json:"resource_url,omitempty"`
	Rows        int       `json:"rows"`
	RowsScanned int       `json:"rows_scanned"`
	HasMore     bool      `json:"has_more"`
	Status      string    `json:"status"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
