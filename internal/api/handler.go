package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"filescan-service/internal/config"
	"filescan-service/internal/entity"
	"filescan-service/internal/logger"
	"filescan-service/internal/model"
	"filescan-service/internal/scan"
	"filescan-service/internal/storage"
)

const defaultScanPageSize = 12

type Handler struct {
	scans    *entity.Collection[model.ScanRecord]
	users    *entity.Collection[model.User]
	chats    *entity.Collection[model.Chat]
	messages *entity.Collection[model.ChatMessage]
	driver   *scan.Driver
	archive  storage.Storage
	cfg      *config.Config
	log      zerolog.Logger
}

// NewHandler wires the API surface. archive may be nil when blob archival
// is disabled.
func NewHandler(
	scans *entity.Collection[model.ScanRecord],
	users *entity.Collection[model.User],
	chats *entity.Collection[model.Chat],
	messages *entity.Collection[model.ChatMessage],
	driver *scan.Driver,
	archive storage.Storage,
	cfg *config.Config,
) *Handler {
	return &Handler{
		scans:    scans,
		users:    users,
		chats:    chats,
		messages: messages,
		driver:   driver,
		archive:  archive,
		cfg:      cfg,
		log:      logger.Get(),
	}
}

// CreateScan accepts a multipart upload, records its metadata in the
// processing state and hands the id to the lifecycle driver. The response
// never waits for the verdict.
func (h *Handler) CreateScan(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		bad(c, "File is required")
		return
	}
	defer file.Close()

	fields := make(map[string]string)
	if title := c.PostForm("title"); title != "" {
		fields["title"] = title
	}
	if description := c.PostForm("description"); description != "" {
		fields["description"] = description
	}
	if len(fields) == 0 {
		fields = nil
	}

	record := model.ScanRecord{
		ID:       uuid.NewString(),
		Filename: header.Filename,
		Size:     header.Size,
		Mime:     header.Header.Get("Content-Type"),
		Fields:   fields,
		Status:   model.ScanStatusProcessing,
		TS:       time.Now().UnixMilli(),
	}

	if _, err := h.scans.Create(c.Request.Context(), record); err != nil {
		h.log.Error().Err(err).Str("scan_id", record.ID).Msg("Failed to create scan record")
		respondError(c, err, "Scan not found")
		return
	}

	if h.archive != nil {
		if err := h.archive.Upload(c.Request.Context(), "scans/"+record.ID, file); err != nil {
			h.log.Error().Err(err).Str("scan_id", record.ID).Msg("Failed to archive uploaded file")
		}
	}

	h.driver.Enqueue(record.ID)

	ok(c, model.ScanAccepted{ID: record.ID, Status: model.ScanStatusProcessing})
}

// ListScans pages through the collection in insertion order and re-sorts
// the page by creation time descending. First call on an empty deployment
// seeds the demo data.
func (h *Handler) ListScans(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.scans.EnsureSeed(ctx, model.SeedScans()); err != nil {
		h.log.Error().Err(err).Msg("Failed to seed scans")
		failure(c, "Internal server error")
		return
	}

	cursor := c.Query("cursor")
	limit := defaultScanPageSize
	if lq := c.Query("limit"); lq != "" {
		if parsed, err := strconv.Atoi(lq); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.scans.List(ctx, cursor, limit)
	if err != nil {
		respondError(c, err, "Scan not found")
		return
	}

	sort.Slice(page.Items, func(i, j int) bool {
		return page.Items[i].TS > page.Items[j].TS
	})

	ok(c, page)
}

func (h *Handler) GetScan(c *gin.Context) {
	record, err := h.scans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Scan not found")
		return
	}
	ok(c, record)
}

// RetryScan resets the record to processing, clears any prior summary and
// enqueues a fresh deferred transition. An in-flight transition from a
// previous enqueue is not cancelled.
func (h *Handler) RetryScan(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if !h.scans.Exists(ctx, id) {
		notFound(c, "Scan not found")
		return
	}

	if _, err := h.scans.Patch(ctx, id, map[string]interface{}{
		"status":  string(model.ScanStatusProcessing),
		"summary": nil,
	}); err != nil {
		respondError(c, err, "Scan not found")
		return
	}

	h.driver.Enqueue(id)

	ok(c, model.ScanAccepted{ID: id, Status: model.ScanStatusProcessing})
}

func (h *Handler) DeleteScan(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.scans.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Scan not found")
		return
	}

	if deleted && h.archive != nil {
		if err := h.archive.Delete(c.Request.Context(), "scans/"+id); err != nil {
			h.log.Error().Err(err).Str("scan_id", id).Msg("Failed to delete archived file")
		}
	}

	ok(c, model.DeleteResult{ID: id, Deleted: deleted})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
