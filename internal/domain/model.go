// Package domain holds the entity shapes the state store persists: strategies,
// backtests, deployments, orders, portfolios, datasets, risk artifacts,
// orchestrator runs, drift events, and knowledge records.
package domain

import "time"

// SchemaVersion is stamped by the stores on every persisted record type that
// has a SchemaVersion field. RiskPolicy (which carries its own Version),
// IngestionRecord and IdempotencyEntry have no such field.
const SchemaVersion = "1.0"

// Strategy is a named, provider-backed trading strategy. Never deleted.
type Strategy struct {
	ID            string
	Name          string
	Description   string
	Provider      string
	ProviderRefID string
	TenantID      string
	UserID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SchemaVersion string
}

// BacktestStatus enumerates backtest lifecycle states.
type BacktestStatus string

const (
	BacktestQueued    BacktestStatus = "queued"
	BacktestRunning   BacktestStatus = "running"
	BacktestCompleted BacktestStatus = "completed"
	BacktestFailed    BacktestStatus = "failed"
	BacktestCancelled BacktestStatus = "cancelled"
)

// Backtest is a strategy evaluation run against one or more datasets.
type Backtest struct {
	ID              string
	StrategyID      string
	DatasetIDs      []string
	StartDate       string
	EndDate         string
	InitialCash     float64
	Status          BacktestStatus
	Metrics         map[string]float64
	ProviderReportID string
	Error           string
	TenantID        string
	UserID          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SchemaVersion   string
}

// DeploymentMode distinguishes paper from live trading.
type DeploymentMode string

const (
	ModePaper DeploymentMode = "paper"
	ModeLive  DeploymentMode = "live"
)

// DeploymentStatus enumerates deployment FSM states.
type DeploymentStatus string

const (
	DeploymentQueued   DeploymentStatus = "queued"
	DeploymentRunning  DeploymentStatus = "running"
	DeploymentPaused   DeploymentStatus = "paused"
	DeploymentStopping DeploymentStatus = "stopping"
	DeploymentStopped  DeploymentStatus = "stopped"
	DeploymentFailed   DeploymentStatus = "failed"
)

// Deployment is a running (or queued/stopped) instance of a strategy.
type Deployment struct {
	ID            string
	StrategyID    string
	Mode          DeploymentMode
	Status        DeploymentStatus
	Capital       float64
	ProviderRefID string
	LatestPnl     *float64
	TenantID      string
	UserID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SchemaVersion string
}

// OrderSide distinguishes buy from sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus enumerates order FSM states.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderFailed    OrderStatus = "failed"
)

// Order is a single order placed against a deployment (or standalone).
type Order struct {
	ID              string
	Symbol          string
	Side            OrderSide
	OrderType       string
	Quantity        float64
	Price           *float64
	Status          OrderStatus
	DeploymentID    string
	ProviderOrderID string
	TenantID        string
	UserID          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SchemaVersion   string
}

// Position is one symbol's holding within a portfolio.
type Position struct {
	Symbol       string
	Quantity     float64
	CurrentPrice float64
}

// Portfolio aggregates cash, value, PnL and positions for a mode.
type Portfolio struct {
	ID            string
	Mode          DeploymentMode
	Cash          float64
	TotalValue    float64
	PnlTotal      float64
	Positions     []Position
	TenantID      string
	UserID        string
	UpdatedAt     time.Time
	SchemaVersion string
}

// DatasetStatus enumerates dataset publish-lifecycle states.
type DatasetStatus string

const (
	DatasetInitialized   DatasetStatus = "initialized"
	DatasetUploaded      DatasetStatus = "uploaded"
	DatasetValidated     DatasetStatus = "validated"
	DatasetTransformed   DatasetStatus = "transformed"
	DatasetPublished     DatasetStatus = "published"
	DatasetPublishFailed DatasetStatus = "publish_failed"
)

// Dataset is a user-uploaded dataset resolved, eventually, to a provider id.
type Dataset struct {
	ID            string
	Filename      string
	SizeBytes     int64
	Status        DatasetStatus
	ProviderDataID string
	TenantID      string
	UserID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SchemaVersion string
}

// RiskMode controls whether breaches block (enforced) or merely log (advisory).
type RiskMode string

const (
	RiskModeAdvisory RiskMode = "advisory"
	RiskModeEnforced RiskMode = "enforced"
)

// RiskLimits bounds notional exposure and loss.
type RiskLimits struct {
	MaxNotionalUsd         float64
	MaxPositionNotionalUsd float64
	MaxDrawdownPct         float64
	MaxDailyLossUsd        float64
}

// KillSwitch is a policy flag that once triggered blocks side effects.
type KillSwitch struct {
	Enabled     bool
	Triggered   bool
	TriggeredAt *time.Time
	Reason      string
}

// RiskPolicy is the schema-versioned per-tenant risk document.
type RiskPolicy struct {
	Version        string
	TenantID       string
	Mode           RiskMode
	Limits         RiskLimits
	KillSwitch     KillSwitch
	ActionsOnBreach []string
}

// OrchestratorState enumerates the orchestrator run FSM's states.
type OrchestratorState string

const (
	RunReceived                 OrchestratorState = "received"
	RunQueued                   OrchestratorState = "queued"
	RunExecuting                OrchestratorState = "executing"
	RunAwaitingTool             OrchestratorState = "awaiting_tool"
	RunAwaitingUserConfirmation OrchestratorState = "awaiting_user_confirmation"
	RunCompleted                OrchestratorState = "completed"
	RunFailed                   OrchestratorState = "failed"
	RunCancelled                OrchestratorState = "cancelled"
)

// OrchestratorRun is a queued/executing unit of orchestrator work.
type OrchestratorRun struct {
	ID                 string
	State              OrchestratorState
	Priority           int
	Attempts           int
	Failures           int
	CancellationReason string
	TenantID           string
	UserID             string
	Sequence           int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	SchemaVersion      string
}

// DriftEvent records a detected divergence between platform and provider state.
type DriftEvent struct {
	ID            string
	ResourceType  string
	ResourceID    string
	ProviderRefID string
	PreviousState string
	ProviderState string
	Resolution    string
	Metadata      map[string]interface{}
	TenantID      string
	UserID        string
	CreatedAt     time.Time
	SchemaVersion string
}

// RiskAuditDecision is the outcome of a risk-gate evaluation.
type RiskAuditDecision string

const (
	RiskDecisionAllow RiskAuditDecision = "allow"
	RiskDecisionBlock RiskAuditDecision = "block"
)

// RiskAuditRecord is an immutable log entry for one risk-gate decision.
type RiskAuditRecord struct {
	ID           string
	Decision     RiskAuditDecision
	CheckType    string
	ResourceType string
	ResourceID   string
	PolicyVersion string
	PolicyMode   RiskMode
	OutcomeCode  string
	Reason       string
	RequestID    string
	TenantID     string
	UserID       string
	CreatedAt    time.Time
	SchemaVersion string
}

// Pattern is a reusable trading pattern surfaced by the knowledge query.
type Pattern struct {
	ID              string
	Name            string
	Description     string
	PatternType     string
	SuitableRegimes []string
	TenantID        string
	CreatedAt       time.Time
	SchemaVersion   string
}

// MarketRegime is a time-bounded market-condition window for an asset. An
// open regime has EndAt unset.
type MarketRegime struct {
	ID            string
	Asset         string
	RegimeType    string
	StartAt       time.Time
	EndAt         *time.Time
	TenantID      string
	SchemaVersion string
}

// LessonCategory enumerates why a lesson was recorded.
type LessonCategory string

const (
	LessonBacktestCompleted LessonCategory = "backtest_completed"
	LessonBacktestFailure   LessonCategory = "backtest_failure"
	LessonBacktestStatus    LessonCategory = "backtest_status"
	LessonDeploymentState   LessonCategory = "deployment_state"
)

// Lesson is a derived observation written from a lifecycle event.
type Lesson struct {
	ID            string
	Category      LessonCategory
	Summary       string
	Attributes    map[string]interface{}
	TenantID      string
	CreatedAt     time.Time
	SchemaVersion string
}

// IngestionRecord marks a fingerprint as already processed, making knowledge
// ingestion idempotent.
type IngestionRecord struct {
	Fingerprint string
	CreatedAt   time.Time
}

// ResearchProviderBudget is the per-tenant spend ceiling for market-scan calls.
type ResearchProviderBudget struct {
	TenantID                   string
	MaxTotalCostUsd            float64
	MaxPerRequestCostUsd       float64
	EstimatedMarketScanCostUsd float64
	SpentCostUsd               float64
	SchemaVersion              string
}

// DatasetExport is a handle to an offline-analysis export of backtest data.
type DatasetExport struct {
	ID            string
	BacktestID    string
	Format        string
	TenantID      string
	UserID        string
	CreatedAt     time.Time
	SchemaVersion string
}

// ResearchBudgetEvent is one decision of the research provider budget guard.
type ResearchBudgetEvent struct {
	ID            string
	Decision      string
	Reason        string
	SpentAfterUsd float64
	TenantID      string
	CreatedAt     time.Time
	SchemaVersion string
}

// IdempotencyEntry is a cached (scope,key) -> (fingerprint, response) record.
type IdempotencyEntry struct {
	Scope              string
	Key                string
	PayloadFingerprint string
	ResponseBody       []byte
	ResponseStatus     int
	CreatedAt          time.Time
}
