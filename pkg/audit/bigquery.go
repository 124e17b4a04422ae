package audit

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/adapter"
	"github.com/m-mizutani/smartshelf/pkg/model"
)

// Schema is the table layout of audit events
var Schema = bigquery.Schema{
	{Name: "id", Type: bigquery.StringFieldType, Required: true},
	{Name: "operation", Type: bigquery.StringFieldType, Required: true},
	{Name: "session_id", Type: bigquery.StringFieldType},
	{Name: "apartment", Type: bigquery.StringFieldType},
	{Name: "spot_id", Type: bigquery.StringFieldType},
	{Name: "outcome", Type: bigquery.StringFieldType},
	{Name: "error", Type: bigquery.StringFieldType},
	{Name: "created_at", Type: bigquery.TimestampFieldType, Required: true},
}

// BigQuery streams events into a BigQuery table
type BigQuery struct {
	client  adapter.BigQuery
	dataset string
	table   string
}

func NewBigQuery(client adapter.BigQuery, dataset, table string) *BigQuery {
	return &BigQuery{
		client:  client,
		dataset: dataset,
		table:   table,
	}
}

// Setup creates the audit table if missing
func (x *BigQuery) Setup(ctx context.Context) error {
	if err := x.client.EnsureTable(ctx, x.dataset, x.table, Schema); err != nil {
		return goerr.Wrap(err, "failed to prepare audit table")
	}
	return nil
}

func (x *BigQuery) Record(ctx context.Context, event *model.AuditEvent) error {
	if err := x.client.Insert(ctx, x.dataset, x.table, []bigquery.ValueSaver{&row{event: event}}); err != nil {
		return goerr.Wrap(err, "failed to insert audit event", goerr.V("id", event.ID))
	}
	return nil
}

type row struct {
	event *model.AuditEvent
}

// Save uses the event ID as insert ID so that retried inserts are deduplicated
func (r *row) Save() (map[string]bigquery.Value, string, error) {
	e := r.event
	return map[string]bigquery.Value{
		"id":         string(e.ID),
		"operation":  e.Operation,
		"session_id": string(e.SessionID),
		"apartment":  e.Apartment,
		"spot_id":    string(e.SpotID),
		"outcome":    e.Outcome,
		"error":      e.Error,
		"created_at": e.CreatedAt,
	}, string(e.ID), nil
}

// History returns the latest events of an apartment, newest first
func (x *BigQuery) History(ctx context.Context, apartment string, limit int) ([]*model.AuditEvent, error) {
	query := fmt.Sprintf("SELECT * FROM `%s.%s` WHERE apartment = @apartment ORDER BY created_at DESC LIMIT @limit",
		x.dataset, x.table)

	rows, err := x.client.Query(ctx, query, []bigquery.QueryParameter{
		{Name: "apartment", Value: apartment},
		{Name: "limit", Value: limit},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query audit events", goerr.V("apartment", apartment))
	}

	events := make([]*model.AuditEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, eventFromRow(r))
	}
	return events, nil
}

func eventFromRow(r map[string]any) *model.AuditEvent {
	str := func(key string) string {
		if v, ok := r[key].(string); ok {
			return v
		}
		return ""
	}

	e := &model.AuditEvent{
		ID:        model.AuditEventID(str("id")),
		Operation: str("operation"),
		SessionID: model.SessionID(str("session_id")),
		Apartment: str("apartment"),
		SpotID:    model.SpotID(str("spot_id")),
		Outcome:   str("outcome"),
		Error:     str("error"),
	}
	if ts, ok := r["created_at"].(time.Time); ok {
		e.CreatedAt = ts
	}
	return e
}
