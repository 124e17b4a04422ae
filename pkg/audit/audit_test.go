package audit_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/audit"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

type mockBigQuery struct {
	tables  map[string]bigquery.Schema
	rows    []map[string]bigquery.Value
	ids     []string
	err     error
	queries []string
	params  []bigquery.QueryParameter
	results []map[string]any
}

func (m *mockBigQuery) Query(ctx context.Context, query string, params []bigquery.QueryParameter) ([]map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.queries = append(m.queries, query)
	m.params = params
	return m.results, nil
}

func (m *mockBigQuery) EnsureTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error {
	if m.tables == nil {
		m.tables = make(map[string]bigquery.Schema)
	}
	m.tables[datasetID+"."+tableID] = schema
	return nil
}

func (m *mockBigQuery) Insert(ctx context.Context, datasetID, tableID string, rows []bigquery.ValueSaver) error {
	if m.err != nil {
		return m.err
	}
	for _, r := range rows {
		values, id, err := r.Save()
		if err != nil {
			return err
		}
		m.rows = append(m.rows, values)
		m.ids = append(m.ids, id)
	}
	return nil
}

func newEvent() *model.AuditEvent {
	return &model.AuditEvent{
		ID:        model.NewAuditEventID(),
		Operation: "commit_reservation",
		SessionID: model.DefaultSessionID,
		Apartment: "4A",
		SpotID:    "M-1",
		Outcome:   "reserved",
		CreatedAt: time.Now(),
	}
}

func TestLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logging.With(context.Background(), logging.New("info", buf))

	gt.NoError(t, audit.NewLogger().Record(ctx, newEvent()))
	gt.S(t, buf.String()).Contains("commit_reservation")
	gt.S(t, buf.String()).Contains("M-1")
}

func TestBigQuerySink(t *testing.T) {
	ctx := context.Background()
	client := &mockBigQuery{}
	sink := audit.NewBigQuery(client, "shelf", "audit")

	gt.NoError(t, sink.Setup(ctx))
	gt.Map(t, client.tables).HasKey("shelf.audit")

	event := newEvent()
	gt.NoError(t, sink.Record(ctx, event))
	gt.A(t, client.rows).Length(1)
	gt.Equal(t, client.ids[0], string(event.ID))
	gt.Equal(t, client.rows[0]["spot_id"], bigquery.Value("M-1"))
	gt.Equal(t, client.rows[0]["operation"], bigquery.Value("commit_reservation"))
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	ok := &mockBigQuery{}
	failing := &mockBigQuery{err: errors.New("quota exceeded")}

	sinks := audit.Multi{
		audit.NewBigQuery(failing, "shelf", "audit"),
		audit.NewBigQuery(ok, "shelf", "audit"),
	}

	err := sinks.Record(ctx, newEvent())
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("quota exceeded")
	// a failing sink does not stop the others
	gt.A(t, ok.rows).Length(1)
}

func TestBigQueryHistory(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	client := &mockBigQuery{
		results: []map[string]any{
			{
				"id":         "ev-2",
				"operation":  "release_packages",
				"session_id": "concierge_desk",
				"apartment":  "4A",
				"outcome":    "released",
				"created_at": at,
			},
			{
				"id":        "ev-1",
				"operation": "commit_reservation",
				"apartment": "4A",
				"spot_id":   "M-1",
				"outcome":   "reserved",
			},
		},
	}

	events, err := audit.NewBigQuery(client, "shelf", "audit").History(ctx, "4A", 5)
	gt.NoError(t, err)
	gt.A(t, events).Length(2)
	gt.Equal(t, events[0].Operation, "release_packages")
	gt.Equal(t, events[0].CreatedAt, at)
	gt.Equal(t, events[1].SpotID, model.SpotID("M-1"))

	gt.S(t, client.queries[0]).Contains("`shelf.audit`")
	gt.A(t, client.params).Length(2)
	gt.Equal(t, client.params[0].Value, any("4A"))
	gt.Equal(t, client.params[1].Value, any(5))
}
