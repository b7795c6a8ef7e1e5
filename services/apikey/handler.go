package apikey

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
	g := admin.Group("/apikeys")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
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
	APIKey string `json:"api_key"`
	Status string `json:"status"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	key, err := h.svc.Create(c.Request.Context(), CreateInput{APIKey: req.APIKey, Status: req.Status})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

type updateRequest struct {
	APIKey *string `json:"api_key"`
	Status *string `json:"status"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	key, err := h.svc.Update(c.Request.Context(), c.Param("id"), UpdateInput{APIKey: req.APIKey, Status: req.Status})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
