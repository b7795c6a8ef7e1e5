package backup

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"amulet-controlplane/pkg/router"
)

type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

func (h *Handler) Register(admin router.AdminRouter) {
	admin.GET("/backup", h.full)
	admin.GET("/backup/licenses", h.licensesOnly)
}

func (h *Handler) full(c *gin.Context) {
	export, err := h.exporter.ExportAll(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	serveAttachment(c, export)
}

func (h *Handler) licensesOnly(c *gin.Context) {
	export, err := h.exporter.ExportLicensesOnly(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	serveAttachment(c, export)
}

func serveAttachment(c *gin.Context, export *Export) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, "application/json", export.Data)
}
