package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/cidco-records/apiserver/types"
	"github.com/lib/pq"
)

// Dimension identifies a filterable column of the registry hierarchy.
type Dimension string

const (
	DimensionRegion Dimension = "region"
	DimensionNode   Dimension = "node"
	DimensionSector Dimension = "sector"
	DimensionBlock  Dimension = "block"
	DimensionPlot   Dimension = "plot"
)

// GroupColumn identifies a column summaries may group by.
type GroupColumn string

const (
	GroupByPlotUse          GroupColumn = "plot_use"
	GroupByDepartmentRemark GroupColumn = "department_remark"
)

var dimensionColumns = map[Dimension]string{
	DimensionRegion: `"REGION"`,
	DimensionNode:   `"NAME_OF_NODE"`,
	DimensionSector: `"SECTOR_NO_"`,
	DimensionBlock:  `"BLOCK_ROAD_NAME"`,
	DimensionPlot:   `"PLOT_NO_"`,
}

var groupColumns = map[GroupColumn]string{
	GroupByPlotUse:          `"PLOT_USE_FOR_INVOICE"`,
	GroupByDepartmentRemark: `"Department_Remark"`,
}

// RegistryRepository handles read and update access to the all_data table.
type RegistryRepository struct {
	db *sql.DB
}

func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// appendFilters renders the filter's non-empty dimensions as AND-equality
// predicates with positional placeholders, in node, sector, block, plot,
// region order. Omitted filters contribute nothing.
func appendFilters(query string, args []any, filter types.SearchFilter) (string, []any) {
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add(dimensionColumns[DimensionNode], filter.Node)
	add(dimensionColumns[DimensionSector], filter.Sector)
	add(dimensionColumns[DimensionBlock], filter.Block)
	add(dimensionColumns[DimensionPlot], filter.Plot)
	add(dimensionColumns[DimensionRegion], filter.Region)
	return query, args
}

// DistinctValues returns the sorted distinct non-null values of the
// dimension's column among rows matching the filter.
func (r *RegistryRepository) DistinctValues(ctx context.Context, dim Dimension, filter types.SearchFilter) ([]string, error) {
	column, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM all_data WHERE %s IS NOT NULL`, column, column)
	var args []any
	query, args = appendFilters(query, args, filter)
	query += fmt.Sprintf(` ORDER BY %s`, column)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

// Search returns the display projection of every row matching the filter.
// An empty filter matches the whole table.
func (r *RegistryRepository) Search(ctx context.Context, filter types.SearchFilter) ([]types.SearchRow, error) {
	query := `
		SELECT "ID", "NAME_OF_NODE", "SECTOR_NO_", "BLOCK_ROAD_NAME", "PLOT_NO_", "PLOT_NO_AFTER_SURVEY"
		FROM all_data WHERE 1=1`
	var args []any
	query, args = appendFilters(query, args, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []types.SearchRow{}
	for rows.Next() {
		var row types.SearchRow
		var node, sector, block, plot, afterSurvey sql.NullString
		if err := rows.Scan(&row.ID, &node, &sector, &block, &plot, &afterSurvey); err != nil {
			return nil, err
		}
		row.NameOfNode = nullableString(node)
		row.SectorNo = nullableString(sector)
		row.BlockRoadName = nullableString(block)
		row.PlotNo = nullableString(plot)
		row.PlotNoAfterSurvey = nullableString(afterSurvey)
		results = append(results, row)
	}
	return results, rows.Err()
}

// GroupRows streams the grouping value, area text, and plot counts of every
// row matching the filter. Aggregation happens in the service so the
// defensive area parse stays in one tested place.
func (r *RegistryRepository) GroupRows(ctx context.Context, groupBy GroupColumn, filter types.SearchFilter) ([]types.GroupRow, error) {
	column, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unknown group column %q", groupBy)
	}

	query := fmt.Sprintf(`
		SELECT COALESCE(CAST(%s AS TEXT), ''),
			COALESCE(CAST("PLOT_AREA_FOR_INVOICE" AS TEXT), ''),
			COALESCE("Additional_Plot_Count", 0),
			COALESCE("Base_Plot_Count", 0)
		FROM all_data WHERE 1=1`, column)
	var args []any
	query, args = appendFilters(query, args, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []types.GroupRow{}
	for rows.Next() {
		var row types.GroupRow
		if err := rows.Scan(&row.Category, &row.AreaText, &row.AdditionalCount, &row.BasePlotCount); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetRecord fetches a full registry row into a column-keyed map.
func (r *RegistryRepository) GetRecord(ctx context.Context, id string) (types.PlotRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT * FROM all_data WHERE "ID" = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	values := make([]any, len(columns))
	for i := range values {
		values[i] = new(any)
	}
	if err := rows.Scan(values...); err != nil {
		return nil, err
	}

	record := make(types.PlotRecord, len(columns))
	for i, column := range columns {
		value := *(values[i].(*any))
		if raw, ok := value.([]byte); ok {
			value = string(raw)
		}
		record[column] = value
	}
	return record, rows.Err()
}

// UpdateRecord applies the supplied column values to the row with the given
// ID. Column names are quoted as identifiers; callers are expected to have
// removed the ID column and derived keys already. An empty field set is a
// no-op.
func (r *RegistryRepository) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(column), i+1))
		args = append(args, fields[column])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE all_data SET %s WHERE "ID" = $%d`, strings.Join(assignments, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
