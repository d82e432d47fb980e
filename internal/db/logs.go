package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/models"
)

// ErrDuplicateExternalID is returned by InsertLogs when a batch contains (or
// collides with an existing row on) an external_id already present in the
// row store. Per spec, this is a per-row rejection, not a batch error.
var ErrDuplicateExternalID = errors.New("duplicate external_id")

// LogDB is the row store adapter for LogEntry (component B). It is the
// authoritative source of truth: the index store (component C) is a
// best-effort secondary view built from rows accepted here.
type LogDB struct {
	db *sql.DB
}

func NewLogDB(database *Database) *LogDB {
	return &LogDB{db: database.DB()}
}

// InsertResult reports, per input row, whether it was stored.
type InsertResult struct {
	ExternalID string
	InternalID int64
	Stored     bool
	Err        error
}

// InsertLogs stores a batch inside a single transaction. A row whose
// external_id collides with an existing row is rejected individually
// (ErrDuplicateExternalID) without aborting the rest of the batch; any other
// failure aborts and rolls back the whole transaction, since it indicates a
// storage-layer problem rather than a data problem.
func (l *LogDB) InsertLogs(entries []models.LogEntry) ([]InsertResult, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertLogSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	results := make([]InsertResult, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		var internalID int64
		err := stmt.QueryRow(
			e.ExternalID, e.Timestamp, e.Level, e.Message, e.SourceType, e.RawLog,
			e.Host, e.Service, e.Category, pq.Array(e.Tags), toJSON(e.StructuredData),
			e.RequestID, e.SessionID, e.CorrelationID, e.IPAddress,
			e.HTTPMethod, e.HTTPStatus, e.Endpoint, e.ResponseTimeMs, e.ApplicationType, e.Framework,
			e.TransactionCode, e.SAPSystem, e.SAPClient, e.SAPMessageType, e.SAPSeverity, toJSON(e.BusinessData),
		).Scan(&internalID)

		// ON CONFLICT DO NOTHING returns no row for a duplicate, which keeps
		// the transaction usable for the rest of the batch.
		if isUniqueViolation(err) || errors.Is(err, sql.ErrNoRows) {
			results = append(results, InsertResult{ExternalID: e.ExternalID, Stored: false, Err: ErrDuplicateExternalID})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert log %s: %w", e.ExternalID, err)
		}
		results = append(results, InsertResult{ExternalID: e.ExternalID, InternalID: internalID, Stored: true})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return results, nil
}

const insertLogSQL = `
	INSERT INTO log_entries (
		external_id, "timestamp", level, message, source_type, raw_log,
		host, service, category, tags, structured_data,
		request_id, session_id, correlation_id, ip_address,
		http_method, http_status, endpoint, response_time_ms, application_type, framework,
		transaction_code, sap_system, sap_client, sap_message_type, sap_severity, business_data
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21,
		$22, $23, $24, $25, $26, $27
	) ON CONFLICT (external_id) DO NOTHING RETURNING internal_id`

// GetByExternalID fetches a single log entry by its external identifier.
func (l *LogDB) GetByExternalID(externalID string) (*models.LogEntry, error) {
	row := l.db.QueryRow(selectLogSQL+` WHERE external_id = $1`, externalID)
	entry, err := scanLogEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("log entry")
		}
		return nil, fmt.Errorf("failed to get log entry: %w", err)
	}
	return entry, nil
}

const selectLogSQL = `
	SELECT internal_id, external_id, "timestamp", level, message, source_type, raw_log,
		COALESCE(host,''), COALESCE(service,''), COALESCE(category,''), tags, structured_data,
		COALESCE(request_id,''), COALESCE(session_id,''), COALESCE(correlation_id,''), COALESCE(ip_address,''),
		COALESCE(http_method,''), http_status, COALESCE(endpoint,''), response_time_ms, COALESCE(application_type,''), COALESCE(framework,''),
		COALESCE(transaction_code,''), COALESCE(sap_system,''), COALESCE(sap_client,''), COALESCE(sap_message_type,''), sap_severity, business_data,
		is_anomaly, COALESCE(anomaly_type,''), performance_metrics, COALESCE(error_details,''),
		created_at, updated_at
	FROM log_entries`

// SearchLogs answers component E's Search operation: a filtered, paginated,
// timestamp-DESC-ordered list. Callers are expected to have already applied
// the edge-case defaults (recent-limit when filter is empty, 24h window when
// no time range is given, limit clamp to 1000) before calling.
func (l *LogDB) SearchLogs(filter models.LogFilter) ([]*models.LogEntry, int64, error) {
	where, args := buildLogWhere(filter)

	countQuery := "SELECT count(*) FROM log_entries" + where
	var total int64
	if err := l.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(
		"%s%s ORDER BY \"timestamp\" DESC LIMIT $%d OFFSET $%d",
		selectLogSQL, where, len(args)-1, len(args),
	)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		entry, err := scanLogEntryRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

// correlationColumns maps a spec §4.B correlation key name to its
// log_entries column. The caller (query.Engine) has already validated key
// against the closed set, so an unrecognized key here is a programming
// error, not a user input one.
var correlationColumns = map[string]string{
	"request_id":     "request_id",
	"session_id":     "session_id",
	"correlation_id": "correlation_id",
	"ip_address":     "ip_address",
}

// CorrelatedLookup finds up to limit log entries sharing one correlation
// key, ordered by timestamp ascending to reconstruct the event sequence.
func (l *LogDB) CorrelatedLookup(key, value string, limit int) ([]*models.LogEntry, error) {
	column, ok := correlationColumns[key]
	if !ok {
		return nil, fmt.Errorf("unknown correlation key: %s", key)
	}

	query := fmt.Sprintf(`%s WHERE %s = $1 ORDER BY "timestamp" ASC LIMIT $2`, selectLogSQL, column)
	rows, err := l.db.Query(query, value, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to correlate logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		entry, err := scanLogEntryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// StatsOverWindow computes the /logs/statistics aggregate directly from the
// row store: totals by level and source, anomaly/error counts and their
// window-relative percentages, and average response time across any HTTP
// entries in the window (null when none have a response_time_ms).
func (l *LogDB) StatsOverWindow(start, end time.Time) (*models.AnalyticsRollup, error) {
	rollup := &models.AnalyticsRollup{
		WindowStart:  start,
		WindowEnd:    end,
		LogsByLevel:  map[models.LogLevel]int64{},
		LogsBySource: map[models.SourceType]int64{},
	}

	row := l.db.QueryRow(`SELECT count(*) FROM log_entries WHERE "timestamp" >= $1 AND "timestamp" < $2`, start, end)
	if err := row.Scan(&rollup.TotalLogs); err != nil {
		return nil, fmt.Errorf("failed to count window: %w", err)
	}

	levelRows, err := l.db.Query(`SELECT level, count(*) FROM log_entries WHERE "timestamp" >= $1 AND "timestamp" < $2 GROUP BY level`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by level: %w", err)
	}
	defer levelRows.Close()
	for levelRows.Next() {
		var level string
		var count int64
		if err := levelRows.Scan(&level, &count); err != nil {
			return nil, err
		}
		rollup.LogsByLevel[models.LogLevel(level)] = count
		if models.LogLevel(level) == models.LevelError || models.LogLevel(level) == models.LevelFatal {
			rollup.ErrorCount += count
		}
	}

	sourceRows, err := l.db.Query(`SELECT source_type, count(*) FROM log_entries WHERE "timestamp" >= $1 AND "timestamp" < $2 GROUP BY source_type`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by source: %w", err)
	}
	defer sourceRows.Close()
	for sourceRows.Next() {
		var source string
		var count int64
		if err := sourceRows.Scan(&source, &count); err != nil {
			return nil, err
		}
		rollup.LogsBySource[models.SourceType(source)] = count
	}

	row = l.db.QueryRow(
		`SELECT count(*) FROM log_entries WHERE "timestamp" >= $1 AND "timestamp" < $2 AND is_anomaly = true`, start, end)
	if err := row.Scan(&rollup.AnomalyCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate anomalies: %w", err)
	}

	var avgResponseTime sql.NullFloat64
	row = l.db.QueryRow(
		`SELECT avg(response_time_ms) FROM log_entries WHERE "timestamp" >= $1 AND "timestamp" < $2 AND response_time_ms IS NOT NULL`, start, end)
	if err := row.Scan(&avgResponseTime); err != nil {
		return nil, fmt.Errorf("failed to average response time: %w", err)
	}
	if avgResponseTime.Valid {
		v := avgResponseTime.Float64
		rollup.AvgResponseTimeMs = &v
	}

	if rollup.TotalLogs > 0 {
		rollup.AnomalyRate = float64(rollup.AnomalyCount) / float64(rollup.TotalLogs) * 100
		rollup.ErrorRate = float64(rollup.ErrorCount) / float64(rollup.TotalLogs) * 100
	}

	return rollup, nil
}

// EnqueueReindex records an external_id whose index-store write failed, so
// the out-of-scope reconciliation collaborator (spec §4.D) has somewhere to
// read from later.
func (l *LogDB) EnqueueReindex(externalID string, internalID int64, reason string) error {
	_, err := l.db.Exec(
		`INSERT INTO reindex_queue (external_id, log_internal_id, reason) VALUES ($1, $2, $3)`,
		externalID, internalID, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue reindex: %w", err)
	}
	return nil
}

// DequeueReindex returns up to limit pending reindex entries and marks them
// dequeued in the same call.
func (l *LogDB) DequeueReindex(limit int) ([]ReindexEntry, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, external_id, log_internal_id, COALESCE(reason,''), enqueued_at
		 FROM reindex_queue WHERE dequeued_at IS NULL ORDER BY enqueued_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reindex queue: %w", err)
	}

	var entries []ReindexEntry
	var ids []int64
	for rows.Next() {
		var e ReindexEntry
		if err := rows.Scan(&e.ID, &e.ExternalID, &e.LogInternalID, &e.Reason, &e.EnqueuedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reindex entry: %w", err)
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE reindex_queue SET dequeued_at = now() WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("failed to dequeue reindex entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dequeue: %w", err)
	}
	return entries, nil
}

// ReindexEntry is a row from reindex_queue.
type ReindexEntry struct {
	ID            int64
	ExternalID    string
	LogInternalID int64
	Reason        string
	EnqueuedAt    time.Time
}

func buildLogWhere(filter models.LogFilter) (string, []interface{}) {
	clauses := []string{}
	var args []interface{}
	idx := 1

	add := func(clause string, value interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}

	if filter.Level != "" {
		add("level = $%d", filter.Level)
	}
	if filter.SourceType != "" {
		add("source_type = $%d", filter.SourceType)
	}
	if filter.Host != "" {
		add("host = $%d", filter.Host)
	}
	if filter.Service != "" {
		add("service = $%d", filter.Service)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.RequestID != "" {
		add("request_id = $%d", filter.RequestID)
	}
	if filter.SessionID != "" {
		add("session_id = $%d", filter.SessionID)
	}
	if filter.CorrelationID != "" {
		add("correlation_id = $%d", filter.CorrelationID)
	}
	if filter.IPAddress != "" {
		add("ip_address = $%d", filter.IPAddress)
	}
	if filter.Query != "" {
		add("message ILIKE $%d", "%"+filter.Query+"%")
	}
	if !filter.Start.IsZero() {
		add(`"timestamp" >= $%d`, filter.Start)
	}
	if !filter.End.IsZero() {
		add(`"timestamp" < $%d`, filter.End)
	}

	if len(clauses) == 0 {
		return "", args
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func scanLogEntry(row *sql.Row) (*models.LogEntry, error) {
	var e models.LogEntry
	var structuredData, performanceMetrics, businessData []byte
	err := row.Scan(
		&e.InternalID, &e.ExternalID, &e.Timestamp, &e.Level, &e.Message, &e.SourceType, &e.RawLog,
		&e.Host, &e.Service, &e.Category, pq.Array(&e.Tags), &structuredData,
		&e.RequestID, &e.SessionID, &e.CorrelationID, &e.IPAddress,
		&e.HTTPMethod, &e.HTTPStatus, &e.Endpoint, &e.ResponseTimeMs, &e.ApplicationType, &e.Framework,
		&e.TransactionCode, &e.SAPSystem, &e.SAPClient, &e.SAPMessageType, &e.SAPSeverity, &businessData,
		&e.IsAnomaly, &e.AnomalyType, &performanceMetrics, &e.ErrorDetails,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	fromJSON(structuredData, &e.StructuredData)
	fromJSON(performanceMetrics, &e.PerformanceMetrics)
	fromJSON(businessData, &e.BusinessData)
	return &e, nil
}

func scanLogEntryRows(rows *sql.Rows) (*models.LogEntry, error) {
	var e models.LogEntry
	var structuredData, performanceMetrics, businessData []byte
	err := rows.Scan(
		&e.InternalID, &e.ExternalID, &e.Timestamp, &e.Level, &e.Message, &e.SourceType, &e.RawLog,
		&e.Host, &e.Service, &e.Category, pq.Array(&e.Tags), &structuredData,
		&e.RequestID, &e.SessionID, &e.CorrelationID, &e.IPAddress,
		&e.HTTPMethod, &e.HTTPStatus, &e.Endpoint, &e.ResponseTimeMs, &e.ApplicationType, &e.Framework,
		&e.TransactionCode, &e.SAPSystem, &e.SAPClient, &e.SAPMessageType, &e.SAPSeverity, &businessData,
		&e.IsAnomaly, &e.AnomalyType, &performanceMetrics, &e.ErrorDetails,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	fromJSON(structuredData, &e.StructuredData)
	fromJSON(performanceMetrics, &e.PerformanceMetrics)
	fromJSON(businessData, &e.BusinessData)
	return &e, nil
}

func toJSON(m map[string]interface{}) []byte {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

func fromJSON(data []byte, out *map[string]interface{}) {
	if len(data) == 0 {
		return
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	*out = m
}

func isUniqueViolation(err error) bool {
	return IsUniqueViolation(err)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), exported so callers outside this package (the
// user handler's CreateUser, in particular) can tell a duplicate key apart
// from any other storage failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
