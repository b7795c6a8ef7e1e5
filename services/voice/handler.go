package voice

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/router"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(admin router.AdminRouter) {
	g := admin.Group("/voices")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/upload", h.upload)
}

func (h *Handler) list(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type createRequest struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
	Active  *bool  `json:"active"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	v, err := h.svc.Create(c.Request.Context(), CreateInput{Name: req.Name, VoiceID: req.VoiceID, Active: active})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type updateRequest struct {
	Name    *string `json:"name"`
	VoiceID *string `json:"voice_id"`
	Active  *bool   `json:"active"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	v, err := h.svc.Update(c.Request.Context(), c.Param("id"), UpdateInput{Name: req.Name, VoiceID: req.VoiceID, Active: req.Active})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.Error(errutil.BadRequest("file is required", errutil.WithErr(err)))
		return
	}

	f, err := file.Open()
	if err != nil {
		c.Error(errutil.BadRequest("failed to open upload", errutil.WithErr(err)))
		return
	}
	defer f.Close()

	added, err := h.svc.BulkUpload(c.Request.Context(), f)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}
