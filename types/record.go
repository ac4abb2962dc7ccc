package types

// PlotRecord is one row of the all_data registry table, keyed by column
// name. The table is wide and loosely typed; rows are bulk-imported and the
// application only reads and updates them, so the record stays a dynamic
// map rather than a fixed struct.
type PlotRecord map[string]any

// SearchFilter carries the optional equality filters over the registry's
// implicit region > node > sector > block > plot hierarchy. Empty fields
// are omitted from the query predicate entirely.
type SearchFilter struct {
	Region string `json:"region"`
	Node   string `json:"node"`
	Sector string `json:"sector"`
	Block  string `json:"block"`
	Plot   string `json:"plot"`
}

// SearchRow is the fixed display projection returned by a search.
// JSON keys are the raw registry column names the client renders.
type SearchRow struct {
	ID                string  `json:"ID"`
	NameOfNode        *string `json:"NAME_OF_NODE"`
	SectorNo          *string `json:"SECTOR_NO_"`
	BlockRoadName     *string `json:"BLOCK_ROAD_NAME"`
	PlotNo            *string `json:"PLOT_NO_"`
	PlotNoAfterSurvey *string `json:"PLOT_NO_AFTER_SURVEY"`
}

// GroupRow is the raw material for one summary group member: the grouping
// value plus the area text and plot counts of a single matching row.
type GroupRow struct {
	Category        string
	AreaText        string
	AdditionalCount int64
	BasePlotCount   int64
}

// SummaryRow is one group of a summary aggregation. Computed fresh per
// request; never persisted.
type SummaryRow struct {
	Category        string  `json:"category"`
	Area            float64 `json:"area"`
	AdditionalCount int64   `json:"additionalCount"`
	BasePlotCount   int64   `json:"basePlotCount"`
	Percent         float64 `json:"percent"`
}

// EvidenceBundle holds the time-limited access URLs for a record's stored
// media. URLs are freshly minted signed URLs; raw storage keys are never
// exposed.
type EvidenceBundle struct {
	Images []string `json:"images"`
	HasPDF bool     `json:"has_pdf"`
	HasMap bool     `json:"has_map"`
	PDFURL *string  `json:"pdf_url"`
	MapURL *string  `json:"map_url"`
}
