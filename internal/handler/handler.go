// Package handler exposes the attendance, registration and report services
// over HTTP.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"presensi/internal/attendance"
	"presensi/internal/chart"
	"presensi/internal/listing"
	"presensi/internal/model"
	"presensi/internal/registrant"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the admin, scanner and log endpoints.
type Handler struct {
	registrants *registrant.Service
	attendance  *attendance.Service
	chart       *chart.Aggregator
	checks      map[string]HealthCheck
	log         zerolog.Logger
}

// New wires the services into a Handler. checks backs /healthz.
func New(reg *registrant.Service, att *attendance.Service, agg *chart.Aggregator, checks map[string]HealthCheck, log zerolog.Logger) *Handler {
	return &Handler{registrants: reg, attendance: att, chart: agg, checks: checks, log: log}
}

// Register mounts the API on r. scanLimit, when non-nil, guards the scan
// endpoint.
func (h *Handler) Register(r gin.IRouter, scanLimit gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.POST("/input-mahasiswa", h.InputStudent)
	api.POST("/input-tamu", h.InputGuest)

	mhs := api.Group("/mahasiswa")
	mhs.GET("", h.ListStudents)
	mhs.POST("", h.CreateStudent)
	mhs.POST("/import", h.ImportStudents)
	mhs.PUT("/:id", h.UpdateStudent)
	mhs.DELETE("/:id", h.DeleteStudent)
	mhs.GET("/:id/qr", h.StudentQR)
	mhs.POST("/:id/qr/publish", h.PublishStudentQR)

	tamu := api.Group("/tamu")
	tamu.GET("", h.ListGuests)
	tamu.POST("", h.CreateGuest)
	tamu.POST("/import", h.ImportGuests)
	tamu.PUT("/:id", h.UpdateGuest)
	tamu.DELETE("/:id", h.DeleteGuest)
	tamu.GET("/:id/qr", h.GuestQR)
	tamu.POST("/:id/qr/publish", h.PublishGuestQR)

	scan := []gin.HandlerFunc{h.Scan}
	if scanLimit != nil {
		scan = append([]gin.HandlerFunc{scanLimit}, scan...)
	}
	api.POST("/scan", scan...)

	api.GET("/scan-log", h.ListLog)
	api.GET("/scan-log/export", h.ExportLog)
	api.DELETE("/scan-log/:id", h.DeleteLog)

	api.GET("/grafik", h.Chart)
}

// ---------- Health ----------

// Healthz reports each dependency check and 503 when one fails.
func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

func statusOf(err error) int {
	switch {
	case errors.Is(err, registrant.ErrInvalid),
		errors.Is(err, registrant.ErrSheetNotFound),
		errors.Is(err, registrant.ErrNoValidRows),
		errors.Is(err, attendance.ErrIdentifierRequired),
		errors.Is(err, attendance.ErrInvalidJenis):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, registrant.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func listQuery(c *gin.Context) listing.Query {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return listing.Query{Search: c.Query("q"), Page: page, PageSize: size}
}

// ---------- Single inserts ----------

// InputStudent inserts one student and answers {"message":"Sukses"}.
// Storage failures are reported as 500.
func (h *Handler) InputStudent(c *gin.Context) {
	var in registrant.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.registrants.CreateStudent(c.Request.Context(), in); err != nil {
		h.inputFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sukses"})
}

// InputGuest inserts one guest and answers {"message":"Sukses"}.
func (h *Handler) InputGuest(c *gin.Context) {
	var in registrant.GuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.registrants.CreateGuest(c.Request.Context(), in); err != nil {
		h.inputFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sukses"})
}

func (h *Handler) inputFailed(c *gin.Context, err error) {
	if errors.Is(err, registrant.ErrInvalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("insert failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	page, err := h.registrants.ListStudents(c.Request.Context(), listQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var in registrant.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.registrants.CreateStudent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var in registrant.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.registrants.UpdateStudent(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.registrants.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ImportStudents(c *gin.Context) {
	h.importSheet(c, string(model.JenisMahasiswa), h.registrants.ImportStudents)
}

func (h *Handler) StudentQR(c *gin.Context) {
	png, err := h.registrants.StudentQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) PublishStudentQR(c *gin.Context) {
	url, err := h.registrants.PublishStudentQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ---------- Guests ----------

func (h *Handler) ListGuests(c *gin.Context) {
	page, err := h.registrants.ListGuests(c.Request.Context(), listQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) CreateGuest(c *gin.Context) {
	var in registrant.GuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.registrants.CreateGuest(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) UpdateGuest(c *gin.Context) {
	var in registrant.GuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.registrants.UpdateGuest(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGuest(c *gin.Context) {
	if err := h.registrants.DeleteGuest(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ImportGuests(c *gin.Context) {
	h.importSheet(c, string(model.JenisTamu), h.registrants.ImportGuests)
}

func (h *Handler) GuestQR(c *gin.Context) {
	png, err := h.registrants.GuestQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) PublishGuestQR(c *gin.Context) {
	url, err := h.registrants.PublishGuestQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// importSheet reads the multipart "file" field and hands it to importFn.
func (h *Handler) importSheet(c *gin.Context, sheet string, importFn func(context.Context, io.Reader) (registrant.ImportResult, error)) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	res, err := importFn(c.Request.Context(), f)
	switch {
	case errors.Is(err, registrant.ErrSheetNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Sheet %q tidak ditemukan!", sheet)})
	case errors.Is(err, registrant.ErrNoValidRows):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tidak ada data valid untuk diimpor.", "skipped": res.Skipped})
	case err != nil:
		h.fail(c, err)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// ---------- Scan ----------

type scanRequest struct {
	Identifier string `json:"identifier"`
}

// Scan checks one identifier in. Every domain outcome is a 200; the
// outcome field tells them apart.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.attendance.CheckIn(c.Request.Context(), req.Identifier)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- Scan log ----------

func logQuery(c *gin.Context) attendance.LogQuery {
	return attendance.LogQuery{Query: listQuery(c), Jenis: c.Query("jenis")}
}

func (h *Handler) ListLog(c *gin.Context) {
	page, err := h.attendance.ListLog(c.Request.Context(), logQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) DeleteLog(c *gin.Context) {
	if err := h.attendance.DeleteLog(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportLog downloads the filtered scan log as Daftar_Scan_Log.xlsx.
func (h *Handler) ExportLog(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.attendance.Export(c.Request.Context(), logQuery(c), &buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attendance.ExportFilename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ---------- Chart ----------

func (h *Handler) Chart(c *gin.Context) {
	bars, err := h.chart.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bars)
}
