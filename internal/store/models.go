package store

import "time"

// ProductStatus represents the lifecycle of a product.
type ProductStatus string

const (
	ProductPending    ProductStatus = "pending"
	ProductInProgress ProductStatus = "in_progress"
	ProductCompleted  ProductStatus = "completed"
)

// StageStatus represents the lifecycle of an active stage on a product.
type StageStatus string

const (
	StageActive    StageStatus = "active"
	StagePaused    StageStatus = "paused"
	StageCompleted StageStatus = "completed"
)

// WorkerStatus represents the lifecycle of one worker on one stage of one product.
type WorkerStatus string

const (
	WorkerAssigned  WorkerStatus = "assigned"
	WorkerWorking   WorkerStatus = "working"
	WorkerCompleted WorkerStatus = "completed"
)

// RequestStatus represents the lifecycle of a material request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestPurchased RequestStatus = "purchased"
	RequestDelivered RequestStatus = "delivered"
)

// User is a registered account. Authentication lives outside this repo;
// the tracker only needs identity and role.
type User struct {
	ID        int64
	Username  string
	FullName  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// Stage is an entry in the manufacturing stage registry.
type Stage struct {
	ID          int64
	Name        string
	Sequence    int64
	NormHours   int64
	Description string
	CreatedAt   time.Time
}

// Product is a tracked garment item.
type Product struct {
	ID             int64
	Code           string
	Name           string
	Status         ProductStatus
	CurrentStageID *int64
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// ActiveStage is one (product, stage) pair currently in the parallel workflow.
// NormHours overrides the stage default when set; EffectiveNormHours resolves it.
type ActiveStage struct {
	ID          int64
	ProductID   int64
	StageID     int64
	Status      StageStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	NormHours   *int64
	CreatedAt   time.Time

	// Joined read-time fields.
	StageName        string
	StageSequence    int64
	StageNormHours   int64
	StageDescription string
	ProductCode      string
	ProductName      string
	WorkerCount      int64
	WorkingCount     int64
	CompletedCount   int64
}

// EffectiveNormHours returns the per-activation override when present,
// otherwise the stage default.
func (a *ActiveStage) EffectiveNormHours() int64 {
	if a.NormHours != nil {
		return *a.NormHours
	}
	return a.StageNormHours
}

// WorkerAssignment is one worker on one (product, stage) pair.
type WorkerAssignment struct {
	ID          int64
	ProductID   int64
	StageID     int64
	UserID      int64
	Status      WorkerStatus
	StartTime   *time.Time
	EndTime     *time.Time
	HoursWorked *float64
	Notes       string
	CreatedAt   time.Time

	// Joined read-time fields.
	WorkerName  string
	Username    string
	StageName   string
	ProductCode string
	ProductName string
	NormHours   int64
	// HoursElapsed is hours_worked once completed, otherwise wall-clock
	// hours since start_time (zero before work starts).
	HoursElapsed float64
	// StageTotalHours sums elapsed or worked hours across every worker on
	// the same pair.
	StageTotalHours float64
}

// AssignFailure explains why one user in a batch assignment was skipped.
type AssignFailure struct {
	UserID int64
	Reason string
}

// BatchAssignResult reports the outcome of a best-effort batch assignment.
type BatchAssignResult struct {
	Assigned []*WorkerAssignment
	Failed   []AssignFailure
}

// MaterialRequest tracks a shortage report through purchasing.
type MaterialRequest struct {
	ID               int64
	ProductID        int64
	StageID          int64
	RequestedBy      int64
	Reason           string
	Status           RequestStatus
	ResponseNote     string
	ExpectedDelivery string
	PurchasedBy      *int64
	PurchasedAt      *time.Time
	DeliveredAt      *time.Time
	CreatedAt        time.Time

	// Joined read-time fields.
	ProductCode   string
	ProductName   string
	StageName     string
	RequesterName string
	PurchaserName string
}

// RequestMessage is one entry in a material request's comment thread.
type RequestMessage struct {
	ID        int64
	RequestID int64
	UserID    int64
	Message   string
	CreatedAt time.Time

	UserName string
}

// MaterialRequestStats aggregates requests per status.
type MaterialRequestStats struct {
	Pending   int64
	Purchased int64
	Delivered int64
}

// WarehouseItemType classifies inventory rows.
type WarehouseItemType string

const (
	ItemProduct  WarehouseItemType = "product"
	ItemDocument WarehouseItemType = "document"
	ItemPersonal WarehouseItemType = "personal"
	ItemMisc     WarehouseItemType = "misc"
)

// WarehouseItem is one inventory row; product rows reference the product,
// custom rows carry their own name and description.
type WarehouseItem struct {
	ID             int64
	ItemType       WarehouseItemType
	ProductID      *int64
	Name           string
	Description    string
	Quantity       int64
	AddedAt        time.Time
	ExportedAt     *time.Time
	ExportRecordID *int64

	ProductCode string
	ProductName string
}

// ExportItem is the snapshot of one warehouse product row on an export record.
type ExportItem struct {
	ID              int64
	ExportRecordID  int64
	WarehouseItemID int64
	ProductID       *int64
	ProductCode     string
	ProductName     string
	Quantity        int64
}

// ExportCustomItem is the snapshot of one ad-hoc line on an export record.
type ExportCustomItem struct {
	ID             int64
	ExportRecordID int64
	ItemType       WarehouseItemType
	Name           string
	Description    string
	Quantity       int64
}

// ExportRecord is the paperwork for one outbound shipment.
type ExportRecord struct {
	ID              int64
	ReferenceCode   string
	Title           string
	Description     string
	ShippingAddress string
	ApprovedBy      string
	CreatedBy       int64
	CreatedAt       time.Time

	CreatorName string
	Items       []ExportItem
	CustomItems []ExportCustomItem
}

// InboundStage is one planned stage on an inbound record.
type InboundStage struct {
	ID              int64
	InboundRecordID int64
	StageID         int64
	NormHours       *int64

	StageName string
}

// InboundRecord is the paperwork for one product entering production.
type InboundRecord struct {
	ID          int64
	ProductID   int64
	Description string
	CreatedBy   int64
	CreatedAt   time.Time

	ProductCode string
	ProductName string
	CreatorName string
	Stages      []InboundStage
}

// ActivityEntry is one audit-trail row.
type ActivityEntry struct {
	ID        int64
	UserID    *int64
	Action    string
	Details   string
	ProductID *int64
	StageID   *int64
	CreatedAt time.Time

	UserName string
}

// ProductOverview is one row of the per-product workflow rollup.
type ProductOverview struct {
	ProductID     int64
	ProductCode   string
	ProductName   string
	Status        ProductStatus
	ActiveStages  int64
	PausedStages  int64
	DoneStages    int64
	WorkerCount   int64
	WorkingCount  int64
	StageNames    string
	EarliestStart *time.Time
}

// StageWorkerStat aggregates worker effort on one stage per product.
type StageWorkerStat struct {
	ProductID   int64
	ProductCode string
	ProductName string
	WorkerCount int64
	TotalHours  float64
	AvgHours    float64
}
