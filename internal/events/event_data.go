package events

// CycleCompletedData contains data for CycleCompleted events
type CycleCompletedData struct {
	Portfolio      string  `json:"portfolio"`
	FinalState     string  `json:"final_state"`
	Executed       bool    `json:"executed"`
	OrdersExecuted int     `json:"orders_executed"`
	OrdersFailed   int     `json:"orders_failed"`
	Turnover       float64 `json:"turnover"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType {
	return CycleCompleted
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	Ticker   string  `json:"ticker"`
	Side     string  `json:"side"`
	Strategy string  `json:"strategy"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	OrderID  string  `json:"order_id,omitempty"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// RiskAlertData contains data for RiskAlertRaised events
type RiskAlertData struct {
	Portfolio string `json:"portfolio"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	Ticker    string `json:"ticker,omitempty"`
	Message   string `json:"message"`
}

// EventType returns the event type for RiskAlertData
func (d *RiskAlertData) EventType() EventType {
	return RiskAlertRaised
}

// PricesUpdatedData contains data for PricesUpdated events
type PricesUpdatedData struct {
	Tickers int `json:"tickers"`
}

// EventType returns the event type for PricesUpdatedData
func (d *PricesUpdatedData) EventType() EventType {
	return PricesUpdated
}

// SnapshotCreatedData contains data for SnapshotCreated events
type SnapshotCreatedData struct {
	Portfolio  string  `json:"portfolio"`
	TotalValue float64 `json:"total_value"`
	DailyPnL   float64 `json:"daily_pnl"`
}

// EventType returns the event type for SnapshotCreatedData
func (d *SnapshotCreatedData) EventType() EventType {
	return SnapshotCreated
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key   string `json:"key"`
	Bytes int    `json:"bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}
