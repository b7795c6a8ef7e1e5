package appconfig

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
	admin.GET("/config", h.get)
	admin.PUT("/config", h.replace)
}

func (h *Handler) get(c *gin.Context) {
	cfg, err := h.svc.Get(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type replaceRequest struct {
	LatestVersion      string   `json:"latest_version"`
	ForceUpdate        bool     `json:"force_update"`
	Maintenance        bool     `json:"maintenance"`
	MaintenanceMessage string   `json:"maintenance_message"`
	UpdateDescription  string   `json:"update_description"`
	UpdateLinks        []string `json:"update_links"`
}

func (h *Handler) replace(c *gin.Context) {
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	cfg, err := h.svc.Replace(c.Request.Context(), ReplaceInput{
		LatestVersion:      req.LatestVersion,
		ForceUpdate:        req.ForceUpdate,
		Maintenance:        req.Maintenance,
		MaintenanceMessage: req.MaintenanceMessage,
		UpdateDescription:  req.UpdateDescription,
		UpdateLinks:        req.UpdateLinks,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
