package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Stage describes a registry entry in a transport-friendly format.
type Stage struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Sequence    int64  `json:"sequence"`
	NormHours   int64  `json:"normHours"`
	Description string `json:"description,omitempty"`
}

// Product describes a tracked product.
type Product struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// ActiveStage describes one (product, stage) pair with live worker counts.
type ActiveStage struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"productId"`
	ProductCode    string `json:"productCode"`
	ProductName    string `json:"productName"`
	StageID        int64  `json:"stageId"`
	StageName      string `json:"stageName"`
	StageSequence  int64  `json:"stageSequence"`
	Status         string `json:"status"`
	NormHours      int64  `json:"normHours"`
	StartedAt      string `json:"startedAt,omitempty"`
	CompletedAt    string `json:"completedAt,omitempty"`
	WorkerCount    int64  `json:"workerCount"`
	WorkingCount   int64  `json:"workingCount"`
	CompletedCount int64  `json:"completedCount"`
}

// WorkerTask describes one worker assignment with derived hours.
type WorkerTask struct {
	ID              int64   `json:"id"`
	ProductID       int64   `json:"productId"`
	ProductCode     string  `json:"productCode"`
	ProductName     string  `json:"productName"`
	StageID         int64   `json:"stageId"`
	StageName       string  `json:"stageName"`
	UserID          int64   `json:"userId"`
	WorkerName      string  `json:"workerName"`
	Status          string  `json:"status"`
	StartTime       string  `json:"startTime,omitempty"`
	EndTime         string  `json:"endTime,omitempty"`
	HoursElapsed    float64 `json:"hoursElapsed"`
	StageTotalHours float64 `json:"stageTotalHours"`
	NormHours       int64   `json:"normHours"`
	Notes           string  `json:"notes,omitempty"`
}

// StageDetail aggregates one pair with its workers and derived statistics.
type StageDetail struct {
	ActiveStage   ActiveStage  `json:"activeStage"`
	Workers       []WorkerTask `json:"workers"`
	TotalHours    float64      `json:"totalHours"`
	PercentOfNorm float64      `json:"percentOfNorm"`
	CanComplete   bool         `json:"canComplete"`
}

// OverviewRow is one product in the workflow rollup.
type OverviewRow struct {
	ProductID    int64  `json:"productId"`
	ProductCode  string `json:"productCode"`
	ProductName  string `json:"productName"`
	Status       string `json:"status"`
	ActiveStages int64  `json:"activeStages"`
	PausedStages int64  `json:"pausedStages"`
	DoneStages   int64  `json:"doneStages"`
	WorkerCount  int64  `json:"workerCount"`
	WorkingCount int64  `json:"workingCount"`
	StageNames   string `json:"stageNames,omitempty"`
}

// MaterialRequest describes a shortage report.
type MaterialRequest struct {
	ID               int64  `json:"id"`
	ProductID        int64  `json:"productId"`
	ProductCode      string `json:"productCode"`
	StageID          int64  `json:"stageId"`
	StageName        string `json:"stageName"`
	RequesterName    string `json:"requesterName"`
	PurchaserName    string `json:"purchaserName,omitempty"`
	Reason           string `json:"reason"`
	Status           string `json:"status"`
	ResponseNote     string `json:"responseNote,omitempty"`
	ExpectedDelivery string `json:"expectedDelivery,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

// WarehouseItem describes one inventory row.
type WarehouseItem struct {
	ID          int64  `json:"id"`
	ItemType    string `json:"itemType"`
	ProductCode string `json:"productCode,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Name        string `json:"name,omitempty"`
	Quantity    int64  `json:"quantity"`
	AddedAt     string `json:"addedAt,omitempty"`
	ExportedAt  string `json:"exportedAt,omitempty"`
}

// ActivityEntry describes one audit row.
type ActivityEntry struct {
	ID        int64  `json:"id"`
	UserName  string `json:"userName,omitempty"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ActiveStageListResponse wraps pair collections for API responses.
type ActiveStageListResponse struct {
	Stages []ActiveStage `json:"stages"`
}

// WorkerTaskListResponse wraps task collections for API responses.
type WorkerTaskListResponse struct {
	Tasks []WorkerTask `json:"tasks"`
}
