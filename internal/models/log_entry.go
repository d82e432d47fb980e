package models

import "time"

// LogLevel is the severity level reported by the originating system.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelFatal LogLevel = "FATAL"
)

// ValidLogLevel reports whether s is one of the closed set of levels.
func ValidLogLevel(s string) bool {
	switch LogLevel(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return true
	}
	return false
}

// SourceType identifies which system produced a LogEntry.
type SourceType string

const (
	SourceSplunk      SourceType = "splunk"
	SourceSAP         SourceType = "sap"
	SourceApplication SourceType = "application"
	SourceSystem      SourceType = "system"
	SourceCustom      SourceType = "custom"
)

func ValidSourceType(s string) bool {
	switch SourceType(s) {
	case SourceSplunk, SourceSAP, SourceApplication, SourceSystem, SourceCustom:
		return true
	}
	return false
}

// LogEntry is the append-only unit of ingestion. Fields below the core block
// are facets that only apply to certain source types (http_* for
// application/system sources, sap_* for SAP sources) and are left zero-valued
// otherwise.
type LogEntry struct {
	InternalID int64     `json:"internal_id"`
	ExternalID string    `json:"external_id"`
	Timestamp  time.Time `json:"timestamp"`
	Level      LogLevel  `json:"level"`
	Message    string    `json:"message"`
	SourceType SourceType `json:"source_type"`
	RawLog     string    `json:"raw_log"`

	Host           string                 `json:"host,omitempty"`
	Service        string                 `json:"service,omitempty"`
	Category       string                 `json:"category,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	StructuredData map[string]interface{} `json:"structured_data,omitempty"`

	// Correlation keys, present on any source type.
	RequestID     string `json:"request_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`

	// HTTP facet.
	HTTPMethod      string   `json:"http_method,omitempty"`
	HTTPStatus      *int     `json:"http_status,omitempty"`
	Endpoint        string   `json:"endpoint,omitempty"`
	ResponseTimeMs  *float64 `json:"response_time_ms,omitempty"`
	ApplicationType string   `json:"application_type,omitempty"`
	Framework       string   `json:"framework,omitempty"`

	// SAP facet.
	TransactionCode string                 `json:"transaction_code,omitempty"`
	SAPSystem       string                 `json:"sap_system,omitempty"`
	SAPClient       string                 `json:"sap_client,omitempty"`
	SAPMessageType  string                 `json:"sap_message_type,omitempty"`
	SAPSeverity     *int                   `json:"sap_severity,omitempty"`
	BusinessData    map[string]interface{} `json:"business_data,omitempty"`

	// Anomaly attributes, populated by the ML pipeline (component F), never
	// set directly by ingestion.
	IsAnomaly          bool                   `json:"is_anomaly"`
	AnomalyType        string                 `json:"anomaly_type,omitempty"`
	PerformanceMetrics map[string]interface{} `json:"performance_metrics,omitempty"`
	ErrorDetails       string                 `json:"error_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SAPMessageTypes enumerates the closed set of SAP message type codes.
var SAPMessageTypes = map[string]bool{
	"S": true, "I": true, "W": true, "E": true, "A": true, "X": true,
}

// LogFilter narrows SearchLogs / CorrelatedLookup queries. Zero values mean
// "unconstrained" for that field.
type LogFilter struct {
	Level         LogLevel
	SourceType    SourceType
	Host          string
	Service       string
	Category      string
	Query         string
	RequestID     string
	SessionID     string
	CorrelationID string
	IPAddress     string
	Start         time.Time
	End           time.Time
	Limit         int
	Offset        int
}
