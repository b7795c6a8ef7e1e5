package activity

import (
	"net/http"
	"strings"

	"amulet-controlplane/pkg/request"
	"amulet-controlplane/pkg/router"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(admin router.AdminRouter) {
	admin.GET("/logs", h.list)
}

func (h *Handler) list(c *gin.Context) {
	f := Filter{
		Query:  strings.TrimSpace(c.Query("q")),
		Action: strings.TrimSpace(c.Query("action")),
	}

	var err error
	if f.MinChars, err = request.IntParam(c, "min_chars"); err != nil {
		c.Error(err)
		return
	}
	if f.MaxChars, err = request.IntParam(c, "max_chars"); err != nil {
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
