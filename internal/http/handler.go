package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"plate-service/internal/domain/recognition"
	"plate-service/internal/http/middleware"
	"plate-service/internal/plate"
	"plate-service/internal/service"
)

const maxUploadSize = 10 << 20

type Handler struct {
	plateService *service.PlateService
	log          zerolog.Logger
}

func NewHandler(plateService *service.PlateService, log zerolog.Logger) *Handler {
	return &Handler{
		plateService: plateService,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.POST("/plates/validate", h.validatePlate)
		public.POST("/plates/suggest", h.suggestPlate)
		public.GET("/plates/letters", h.listLetters)
		public.GET("/vehicles", h.findVehicles)
		public.GET("/vehicles/:id", h.getVehicle)
		public.GET("/violations", h.listViolations)
		public.GET("/stats", h.stats)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/vehicles", h.upsertVehicle)
		protected.POST("/recognitions", h.recognize)
		protected.POST("/violations/:id/processed", h.markViolationProcessed)
		protected.GET("/snapshots", h.listSnapshots)
		protected.GET("/snapshots/:id/image", h.snapshotImage)
	}
}

type plateRequest struct {
	Plate string `json:"plate" binding:"required"`
}

func (h *Handler) validatePlate(c *gin.Context) {
	var req plateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result := h.plateService.ValidatePlate(req.Plate)
	lang := preferredLanguage(c)
	view := newValidationView(result, lang)
	if !result.Valid {
		view.Suggestions = h.plateService.Suggest(req.Plate)
	}

	c.JSON(http.StatusOK, successResponse(view))
}

func (h *Handler) suggestPlate(c *gin.Context) {
	var req plateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"plate":       req.Plate,
		"suggestions": h.plateService.Suggest(req.Plate),
	}))
}

func (h *Handler) listLetters(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(plate.Letters()))
}

// findVehicles searches by ?plate= or, without it, pages through the registry.
func (h *Handler) findVehicles(c *gin.Context) {
	var (
		vehicles []service.VehicleInfo
		err      error
	)
	if query := strings.TrimSpace(c.Query("plate")); query != "" {
		vehicles, err = h.plateService.FindVehicles(c.Request.Context(), query)
	} else {
		limit, offset := pagination(c)
		vehicles, err = h.plateService.ListVehicles(c.Request.Context(), limit, offset)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(vehicles))
}

func (h *Handler) getVehicle(c *gin.Context) {
	vehicle, err := h.plateService.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) stats(c *gin.Context) {
	top := 0
	if t := c.Query("top"); t != "" {
		if parsed, err := strconv.Atoi(t); err == nil && parsed > 0 {
			top = parsed
		}
	}

	stats, err := h.plateService.Stats(c.Request.Context(), top)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) listSnapshots(c *gin.Context) {
	limit, _ := pagination(c)
	snapshots, err := h.plateService.ListSnapshots(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(snapshots))
}

// snapshotImage streams inline image bytes or redirects to the stored object.
func (h *Handler) snapshotImage(c *gin.Context) {
	image, err := h.plateService.SnapshotImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	if len(image.Data) == 0 {
		c.Redirect(http.StatusFound, image.URL)
		return
	}
	c.Data(http.StatusOK, image.Mime, image.Data)
}

func (h *Handler) listViolations(c *gin.Context) {
	var plateQuery *string
	if p := strings.TrimSpace(c.Query("plate")); p != "" {
		plateQuery = &p
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit, offset := pagination(c)

	violations, err := h.plateService.ListViolations(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(violations))
}

func (h *Handler) upsertVehicle(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanManageRegistry() {
		c.JSON(http.StatusForbidden, errorResponse("not allowed to manage the vehicle registry"))
		return
	}

	var input service.VehicleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle, err := h.plateService.UpsertVehicle(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().
		Str("user_id", principal.UserID.String()).
		Str("vehicle_id", vehicle.ID).
		Str("plate_key", vehicle.PlateKey).
		Msg("vehicle upserted")

	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) recognize(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanRecordViolations() {
		c.JSON(http.StatusForbidden, errorResponse("not allowed to submit recognitions"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fileHeader, err := c.FormFile("upload")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("upload file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot open upload"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read upload"))
		return
	}

	opts := recognition.ProcessOptions{
		RecordViolation: true,
		Location:        strings.TrimSpace(c.PostForm("location")),
	}
	if raw := c.PostForm("record_violation"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			opts.RecordViolation = parsed
		}
	}

	h.log.Info().
		Str("user_id", principal.UserID.String()).
		Str("filename", fileHeader.Filename).
		Int("size", len(image)).
		Msg("processing recognition upload")

	result, err := h.plateService.RecognizeImage(c.Request.Context(), image, fileHeader.Filename, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

func (h *Handler) markViolationProcessed(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanProcessViolations() {
		c.JSON(http.StatusForbidden, errorResponse("not allowed to process violations"))
		return
	}

	if err := h.plateService.MarkViolationProcessed(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"id": c.Param("id"), "processed": true}))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
