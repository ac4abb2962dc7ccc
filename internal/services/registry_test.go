package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
)

type fakeRegistryRepo struct {
	distinctValues []string
	searchRows     []types.SearchRow
	groupRows      []types.GroupRow
	record         types.PlotRecord
	err            error

	updatedID     string
	updatedFields map[string]any
	updateErr     error
}

func (f *fakeRegistryRepo) DistinctValues(ctx context.Context, dim store.Dimension, filter types.SearchFilter) ([]string, error) {
	return f.distinctValues, f.err
}

func (f *fakeRegistryRepo) Search(ctx context.Context, filter types.SearchFilter) ([]types.SearchRow, error) {
	return f.searchRows, f.err
}

func (f *fakeRegistryRepo) GroupRows(ctx context.Context, groupBy store.GroupColumn, filter types.SearchFilter) ([]types.GroupRow, error) {
	return f.groupRows, f.err
}

func (f *fakeRegistryRepo) GetRecord(ctx context.Context, id string) (types.PlotRecord, error) {
	return f.record, f.err
}

func (f *fakeRegistryRepo) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	f.updatedID = id
	f.updatedFields = fields
	return f.updateErr
}

type capturingPublisher struct {
	published []types.RecordEvent
}

func (c *capturingPublisher) Publish(ctx context.Context, event types.RecordEvent) error {
	c.published = append(c.published, event)
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

func TestParseInvoiceArea(t *testing.T) {
	cases := []struct {
		input string
		want  float64
	}{
		{"1234.5", 1234.5},
		{"1234", 1234},
		{"1,234.5 sqm", 1234.5},
		{" 450.75 ", 450.75},
		{"About 1,000 Sq M", 1000},
		{"approx 1,234.56 sq.m.", 1234.56},
		{"", 0},
		{"not a number", 0},
		{"N/A", 0},
	}
	for _, tc := range cases {
		if got := ParseInvoiceArea(tc.input); got != tc.want {
			t.Errorf("ParseInvoiceArea(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestSummarizeGroupsAndPercentages(t *testing.T) {
	repo := &fakeRegistryRepo{
		groupRows: []types.GroupRow{
			{Category: "Residential", AreaText: "600", AdditionalCount: 1, BasePlotCount: 2},
			{Category: "Residential", AreaText: "150.5 sqm", AdditionalCount: 0, BasePlotCount: 1},
			{Category: "Commercial", AreaText: "249.5", AdditionalCount: 3, BasePlotCount: 0},
			{Category: "", AreaText: "", AdditionalCount: 0, BasePlotCount: 5},
		},
	}
	svc := NewRegistryService(repo, nil)

	rows, err := svc.Summarize(context.Background(), store.GroupByPlotUse, types.SearchFilter{})
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(rows))
	}

	if rows[0].Category != "Residential" || rows[0].Area != 750.5 {
		t.Errorf("unexpected first group: %+v", rows[0])
	}
	if rows[1].Category != "Commercial" || rows[1].Area != 249.5 {
		t.Errorf("unexpected second group: %+v", rows[1])
	}
	if rows[2].Category != "Not Specified" || rows[2].Area != 0 {
		t.Errorf("unexpected third group: %+v", rows[2])
	}
	if rows[0].AdditionalCount != 1 || rows[0].BasePlotCount != 3 {
		t.Errorf("unexpected counts for first group: %+v", rows[0])
	}

	total := 0.0
	for _, row := range rows {
		total += row.Percent
	}
	if math.Abs(total-100) > 0.02 {
		t.Errorf("percentages sum to %v, want 100", total)
	}
	if rows[0].Percent != 75.05 {
		t.Errorf("first group percent = %v, want 75.05", rows[0].Percent)
	}
}

func TestSummarizeZeroTotalArea(t *testing.T) {
	repo := &fakeRegistryRepo{
		groupRows: []types.GroupRow{
			{Category: "Residential", AreaText: ""},
			{Category: "Commercial", AreaText: "no area"},
		},
	}
	svc := NewRegistryService(repo, nil)

	rows, err := svc.Summarize(context.Background(), store.GroupByPlotUse, types.SearchFilter{})
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	for _, row := range rows {
		if row.Percent != 0 {
			t.Errorf("group %q percent = %v, want 0", row.Category, row.Percent)
		}
	}
}

func TestCleanRecordFields(t *testing.T) {
	cleaned := CleanRecordFields(map[string]any{
		"ID":           "5",
		"NAME_OF_NODE": "X",
		"images":       []any{"a"},
		"has_pdf":      true,
		"has_map":      false,
		"pdf_url":      "u",
		"map_url":      "v",
	})
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 field after cleaning, got %d: %v", len(cleaned), cleaned)
	}
	if cleaned["NAME_OF_NODE"] != "X" {
		t.Errorf("NAME_OF_NODE missing from cleaned fields: %v", cleaned)
	}
}

func TestUpdateRecordNormalizesEmptyValues(t *testing.T) {
	repo := &fakeRegistryRepo{}
	publisher := &capturingPublisher{}
	svc := NewRegistryService(repo, publisher)

	err := svc.UpdateRecord(context.Background(), "5", map[string]any{
		"NAME_OF_NODE":    "PANVEL EAST",
		"BLOCK_ROAD_NAME": "",
	}, "3")
	if err != nil {
		t.Fatalf("UpdateRecord error: %v", err)
	}

	if repo.updatedID != "5" {
		t.Errorf("updated id = %q, want 5", repo.updatedID)
	}
	if repo.updatedFields["NAME_OF_NODE"] != "PANVEL EAST" {
		t.Errorf("unexpected fields: %v", repo.updatedFields)
	}
	if value, ok := repo.updatedFields["BLOCK_ROAD_NAME"]; !ok || value != nil {
		t.Errorf("empty string not normalized to nil: %v", repo.updatedFields)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(publisher.published))
	}
	event := publisher.published[0]
	if event.Type != types.EventRecordUpdated || event.RecordID != "5" {
		t.Errorf("unexpected event: %+v", event)
	}
	if len(event.Columns) != 2 || event.Columns[0] != "BLOCK_ROAD_NAME" {
		t.Errorf("unexpected event columns: %v", event.Columns)
	}
}

func TestUpdateRecordEmptyFieldsIsNoop(t *testing.T) {
	repo := &fakeRegistryRepo{}
	publisher := &capturingPublisher{}
	svc := NewRegistryService(repo, publisher)

	if err := svc.UpdateRecord(context.Background(), "5", map[string]any{}, ""); err != nil {
		t.Fatalf("UpdateRecord error: %v", err)
	}
	if repo.updatedFields != nil {
		t.Errorf("expected no repository write, got %v", repo.updatedFields)
	}
	if len(publisher.published) != 0 {
		t.Errorf("expected no audit event, got %d", len(publisher.published))
	}
}

func TestUpdateRecordMissingRowIsNoop(t *testing.T) {
	repo := &fakeRegistryRepo{updateErr: store.ErrNotFound}
	svc := NewRegistryService(repo, nil)

	err := svc.UpdateRecord(context.Background(), "nope", map[string]any{"NAME_OF_NODE": "X"}, "")
	if err != nil {
		t.Fatalf("expected missing row to be a no-op, got %v", err)
	}
}

func TestUpdateRecordPropagatesQueryError(t *testing.T) {
	repo := &fakeRegistryRepo{updateErr: errors.New("connection refused")}
	svc := NewRegistryService(repo, nil)

	err := svc.UpdateRecord(context.Background(), "5", map[string]any{"NAME_OF_NODE": "X"}, "")
	if err == nil {
		t.Fatal("expected error")
	}
}
