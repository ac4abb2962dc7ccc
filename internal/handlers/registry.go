package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cidco-records/apiserver/internal/services"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// RegistryHandler provides filter, search, and summary endpoints over the
// plot registry.
type RegistryHandler struct {
	registryService *services.RegistryService
}

// NewRegistryHandler constructs a handler with the provided service.
func NewRegistryHandler(registryService *services.RegistryService) *RegistryHandler {
	return &RegistryHandler{registryService: registryService}
}

// RegistryRouter registers filter, search, and summary routes on the given
// router.
func RegistryRouter(r chi.Router, registryService *services.RegistryService) {
	handler := NewRegistryHandler(registryService)

	r.Get("/summary", handler.SummaryByPlotUse)
	r.Get("/summary/department", handler.SummaryByDepartment)
	r.Get("/regions", handler.Regions)
	r.Get("/nodes", handler.Nodes)
	r.Get("/sectors", handler.Sectors)
	r.Get("/blocks", handler.Blocks)
	r.Get("/plots", handler.Plots)
	r.Post("/search", handler.Search)
}

// SummaryByPlotUse reports grouped plot-use totals under the optional
// region/node/sector filters.
func (h *RegistryHandler) SummaryByPlotUse(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, store.GroupByPlotUse)
}

// SummaryByDepartment reports grouped department-remark totals under the
// optional region/node/sector filters.
func (h *RegistryHandler) SummaryByDepartment(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, store.GroupByDepartmentRemark)
}

func (h *RegistryHandler) summary(w http.ResponseWriter, r *http.Request, groupBy store.GroupColumn) {
	filter := types.SearchFilter{
		Region: r.URL.Query().Get("region"),
		Node:   r.URL.Query().Get("node"),
		Sector: r.URL.Query().Get("sector"),
	}

	rows, err := h.registryService.Summarize(r.Context(), groupBy, filter)
	if err != nil {
		// Summary failures degrade to an empty result; the UI renders an
		// empty chart rather than an error banner.
		slog.Error("summary query failed", "group_by", groupBy, "error", err)
		writeJSON(w, http.StatusOK, []types.SummaryRow{})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Regions lists every distinct region.
func (h *RegistryHandler) Regions(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, store.DimensionRegion, types.SearchFilter{})
}

// Nodes lists distinct nodes, optionally constrained by region.
func (h *RegistryHandler) Nodes(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, store.DimensionNode, types.SearchFilter{
		Region: r.URL.Query().Get("region"),
	})
}

// Sectors lists distinct sectors, optionally constrained by node and region.
func (h *RegistryHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, store.DimensionSector, types.SearchFilter{
		Node:   r.URL.Query().Get("node"),
		Region: r.URL.Query().Get("region"),
	})
}

// Blocks lists distinct block/road names under the upstream filters.
func (h *RegistryHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, store.DimensionBlock, types.SearchFilter{
		Node:   r.URL.Query().Get("node"),
		Sector: r.URL.Query().Get("sector"),
		Region: r.URL.Query().Get("region"),
	})
}

// Plots lists distinct plot numbers under the upstream filters.
func (h *RegistryHandler) Plots(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, store.DimensionPlot, types.SearchFilter{
		Node:   r.URL.Query().Get("node"),
		Sector: r.URL.Query().Get("sector"),
		Block:  r.URL.Query().Get("block"),
		Region: r.URL.Query().Get("region"),
	})
}

func (h *RegistryHandler) distinct(w http.ResponseWriter, r *http.Request, dim store.Dimension, filter types.SearchFilter) {
	values, err := h.registryService.DistinctValues(r.Context(), dim, filter)
	if err != nil {
		slog.Warn("distinct value lookup failed", "dimension", dim, "error", err)
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// Search returns the display projection of all rows matching the posted
// filter. Query failures degrade to an empty list.
func (h *RegistryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var filter types.SearchFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	rows, err := h.registryService.Search(r.Context(), filter)
	if err != nil {
		slog.Warn("search query failed", "error", err)
		writeJSON(w, http.StatusOK, []types.SearchRow{})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
