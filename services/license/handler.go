package license

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/request"
	"amulet-controlplane/pkg/router"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(admin router.AdminRouter) {
	g := admin.Group("/licenses")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/toggle", h.toggle)
	g.POST("/:id/credit", h.credit)
}

func (h *Handler) list(c *gin.Context) {
	var f Filter
	f.Query = c.Query("q")

	var err error
	if f.MinCredit, err = request.IntParam(c, "min_credit"); err != nil {
		c.Error(err)
		return
	}
	if f.MaxCredit, err = request.IntParam(c, "max_credit"); err != nil {
		c.Error(err)
		return
	}
	if f.Active, err = request.BoolParam(c, "active"); err != nil {
		c.Error(err)
		return
	}
	if f.DateFrom, err = request.DayParam(c, "date_from", false); err != nil {
		c.Error(err)
		return
	}
	if f.DateTo, err = request.DayParam(c, "date_to", true); err != nil {
		c.Error(err)
		return
	}

	rows, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type createRequest struct {
	Key    string  `json:"key"`
	MacID  *string `json:"mac_id"`
	Credit int64   `json:"credit"`
	Active *bool   `json:"active"`
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

	lic, err := h.svc.Create(c.Request.Context(), CreateInput{
		Key:    req.Key,
		MacID:  req.MacID,
		Credit: req.Credit,
		Active: active,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, lic)
}

func (h *Handler) get(c *gin.Context) {
	lic, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, lic)
}

type updateRequest struct {
	Key    *string `json:"key"`
	MacID  *string `json:"mac_id"`
	Credit *int64  `json:"credit"`
	Active *bool   `json:"active"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	lic, err := h.svc.Update(c.Request.Context(), c.Param("id"), UpdateInput{
		Key:    req.Key,
		MacID:  req.MacID,
		Credit: req.Credit,
		Active: req.Active,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, lic)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggle(c *gin.Context) {
	active, err := h.svc.ToggleActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}

type creditRequest struct {
	Delta *int64 `json:"delta"`
}

func (h *Handler) credit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}
	if req.Delta == nil {
		c.Error(errutil.ValidationFailed("delta is required"))
		return
	}

	credit, err := h.svc.ApplyCreditDelta(c.Request.Context(), c.Param("id"), *req.Delta)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credit": credit})
}
