package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cidco-records/apiserver/internal/events"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
)

// unspecifiedCategory is the summary bucket for rows whose grouping column
// is null or empty.
const unspecifiedCategory = "Not Specified"

// derivedRecordKeys are response-only keys merged into record payloads by
// the evidence resolver. They are never writable columns.
var derivedRecordKeys = []string{"images", "has_pdf", "has_map", "pdf_url", "map_url"}

var numericAreaPattern = regexp.MustCompile(`^[0-9.]+$`)
var nonNumericPattern = regexp.MustCompile(`[^0-9.]`)

// RegistryRepository defines persistence operations for the plot registry.
type RegistryRepository interface {
	DistinctValues(ctx context.Context, dim store.Dimension, filter types.SearchFilter) ([]string, error)
	Search(ctx context.Context, filter types.SearchFilter) ([]types.SearchRow, error)
	GroupRows(ctx context.Context, groupBy store.GroupColumn, filter types.SearchFilter) ([]types.GroupRow, error)
	GetRecord(ctx context.Context, id string) (types.PlotRecord, error)
	UpdateRecord(ctx context.Context, id string, fields map[string]any) error
}

// RegistryService encapsulates search, summary, and mutation use-cases over
// the plot registry.
type RegistryService struct {
	repo      RegistryRepository
	publisher events.Publisher
}

func NewRegistryService(repo RegistryRepository, publisher events.Publisher) *RegistryService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &RegistryService{repo: repo, publisher: publisher}
}

// DistinctValues returns the option list for one filter dimension under the
// already-chosen upstream filters.
func (s *RegistryService) DistinctValues(ctx context.Context, dim store.Dimension, filter types.SearchFilter) ([]string, error) {
	return s.repo.DistinctValues(ctx, dim, filter)
}

// Search returns the display projection of all rows matching the filter.
// An empty filter matches everything; the node/sector precondition is a UI
// concern.
func (s *RegistryService) Search(ctx context.Context, filter types.SearchFilter) ([]types.SearchRow, error) {
	return s.repo.Search(ctx, filter)
}

// Summarize groups matching rows by the chosen column and computes per-group
// area, plot counts, and percentage of the total area.
func (s *RegistryService) Summarize(ctx context.Context, groupBy store.GroupColumn, filter types.SearchFilter) ([]types.SummaryRow, error) {
	rows, err := s.repo.GroupRows(ctx, groupBy, filter)
	if err != nil {
		return nil, err
	}

	groups := map[string]*types.SummaryRow{}
	for _, row := range rows {
		category := row.Category
		if category == "" {
			category = unspecifiedCategory
		}
		group := groups[category]
		if group == nil {
			group = &types.SummaryRow{Category: category}
			groups[category] = group
		}
		group.Area += ParseInvoiceArea(row.AreaText)
		group.AdditionalCount += row.AdditionalCount
		group.BasePlotCount += row.BasePlotCount
	}

	summary := make([]types.SummaryRow, 0, len(groups))
	totalArea := 0.0
	for _, group := range groups {
		summary = append(summary, *group)
		totalArea += group.Area
	}

	sort.Slice(summary, func(i, j int) bool {
		if summary[i].Area != summary[j].Area {
			return summary[i].Area > summary[j].Area
		}
		return summary[i].Category < summary[j].Category
	})

	for i := range summary {
		if totalArea > 0 {
			summary[i].Percent = round2(summary[i].Area / totalArea * 100)
		}
	}
	return summary, nil
}

// GetRecord fetches a full registry row.
func (s *RegistryService) GetRecord(ctx context.Context, id string) (types.PlotRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

// CleanRecordFields strips the ID column and derived response keys from an
// update payload. The remainder is what may actually be written.
func CleanRecordFields(fields map[string]any) map[string]any {
	cleaned := make(map[string]any, len(fields))
	for key, value := range fields {
		cleaned[key] = value
	}
	delete(cleaned, "ID")
	for _, key := range derivedRecordKeys {
		delete(cleaned, key)
	}
	return cleaned
}

// UpdateRecord applies the supplied column values to one row, normalizing
// empty values to NULL. An update addressing a missing row matches zero
// rows and is treated as a successful no-op. fields must already be
// cleaned; an empty set writes nothing.
func (s *RegistryService) UpdateRecord(ctx context.Context, id string, fields map[string]any, actor string) error {
	if len(fields) == 0 {
		return nil
	}

	normalized := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil || value == "" {
			normalized[key] = nil
			continue
		}
		normalized[key] = value
	}

	if err := s.repo.UpdateRecord(ctx, id, normalized); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	columns := make([]string, 0, len(normalized))
	for key := range normalized {
		columns = append(columns, key)
	}
	sort.Strings(columns)

	event := events.NewEvent(types.EventRecordUpdated)
	event.RecordID = id
	event.Username = actor
	event.Columns = columns
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Error("failed to publish record update event", "record_id", id, "error", err)
	}
	return nil
}

// ParseInvoiceArea defensively parses the PLOT_AREA_FOR_INVOICE text. A
// purely numeric value parses directly; anything else has every
// non-digit/non-dot character stripped first. Unparseable input counts as 0.
func ParseInvoiceArea(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if numericAreaPattern.MatchString(text) {
		if value, err := strconv.ParseFloat(text, 64); err == nil {
			return value
		}
		return 0
	}
	stripped := nonNumericPattern.ReplaceAllString(text, "")
	return parseNumericPrefix(stripped)
}

// parseNumericPrefix parses the leading number of text, tolerating trailing
// garbage such as the dots left behind by stripping "sq.m.".
func parseNumericPrefix(text string) float64 {
	end := 0
	seenDot := false
	for end < len(text) {
		ch := text[end]
		if ch == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if ch < '0' || ch > '9' {
			break
		}
		end++
	}
	value, err := strconv.ParseFloat(text[:end], 64)
	if err != nil {
		return 0
	}
	return value
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
