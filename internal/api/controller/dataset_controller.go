package controller

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
	"github.com/czkultura/dataserve/internal/resolver"
)

// DatasetInfo is one row of the datasets listing.
type DatasetInfo struct {
	Name         string     `json:"name"`
	TTLSeconds   int        `json:"ttl_seconds"`
	Shape        string     `json:"shape"`
	LiveWired    bool       `json:"live_wired"`
	HasEndpoint  bool       `json:"has_endpoint"`
	SnapshotFile string     `json:"snapshot_file,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	Cached       bool       `json:"cached"`
}

// Freshness reports when a dataset's snapshot file last changed. Satisfied
// by the snapshot watcher; nil disables the listing's timestamp column.
type Freshness interface {
	LastUpdated(name string) (time.Time, bool)
}

// DatasetController serves the registry listing and the per-dataset records.
type DatasetController struct {
	registry  *dataset.Registry
	service   *resolver.Service
	freshness Freshness
}

func NewDatasetController(registry *dataset.Registry, service *resolver.Service, freshness Freshness) *DatasetController {
	return &DatasetController{
		registry:  registry,
		service:   service,
		freshness: freshness,
	}
}

// List returns every registered dataset with its freshness and cache state.
func (dc *DatasetController) List(c *gin.Context) {
	all := dc.registry.All()
	infos := make([]DatasetInfo, 0, len(all))
	for _, ds := range all {
		info := DatasetInfo{
			Name:        ds.Name,
			TTLSeconds:  int(ds.TTL / time.Second),
			Shape:       string(ds.Shape),
			LiveWired:   ds.LiveWired(),
			HasEndpoint: ds.HasEndpoint(),
			Cached:      dc.service.Cached(ds.Name),
		}
		if ds.HasSnapshot() {
			// Just the filename; the data directory is the server's business.
			info.SnapshotFile = filepath.Base(ds.SnapshotFile)
		}
		if dc.freshness != nil {
			if at, ok := dc.freshness.LastUpdated(ds.Name); ok {
				updated := at
				info.LastUpdated = &updated
			}
		}
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, infos)
}

// Get serves one dataset's normalized record. Budget accepts ?year= and
// defaults to the current year; the heritage table accepts ?top=N for the
// visitor ranking.
func (dc *DatasetController) Get(c *gin.Context) {
	name := c.Param("name")
	if _, ok := dc.registry.Get(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown dataset '%s'", name)})
		return
	}

	ctx := c.Request.Context()

	var (
		record interface{}
		err    error
	)
	switch name {
	case dataset.NameEconomicIndicators:
		record, err = dc.service.EconomicIndicators(ctx)

	case dataset.NameUnescoSites:
		top := 0
		if raw := c.Query("top"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a positive integer"})
				return
			}
			top = n
		}
		var sites dataset.HeritageSites
		sites, err = dc.service.HeritageSites(ctx)
		if err == nil && top > 0 {
			sites = dataset.HeritageSites{
				VisitorsYear: sites.VisitorsYear,
				Sites:        sites.TopByVisitors(top),
			}
		}
		record = sites

	case dataset.NameBudget:
		year := dc.service.DefaultBudgetYear()
		if raw := c.Query("year"); raw != "" {
			y, convErr := strconv.Atoi(raw)
			if convErr != nil || y < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "year must be a positive integer"})
				return
			}
			year = y
		}
		record, err = dc.service.Budget(ctx, year)

	case dataset.NameArtistStatus:
		record, err = dc.service.ArtistStatus(ctx)

	case dataset.NameNameday:
		record, err = dc.service.Nameday(ctx)

	default:
		// Registered name without an accessor; the static registry makes
		// this unreachable, but a blank 200 would be worse than a 404.
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown dataset '%s'", name)})
		return
	}

	if err != nil {
		dc.renderError(c, name, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// renderError maps resolution failures to the explicit warning state the
// dashboard expects. A dataset that cannot be served is 503, never a blank
// or zero-valued record.
func (dc *DatasetController) renderError(c *gin.Context, name string, err error) {
	if errors.Is(err, resolver.ErrUnavailable) {
		logger.WithDataset("dataset_controller", name).Warnf("serving unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   err.Error(),
			"dataset": name,
			"status":  "unavailable",
		})
		return
	}
	logger.WithDataset("dataset_controller", name).Errorf("resolution failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve dataset"})
}
