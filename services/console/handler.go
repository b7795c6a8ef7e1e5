package console

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/router"
	"amulet-controlplane/services/apikey"
	"amulet-controlplane/services/appconfig"
	"amulet-controlplane/services/license"
	"amulet-controlplane/services/voice"
)

// Handler is the public console dispatcher. Consoles post one action per
// request; business failures answer HTTP 200 with ok=false so old clients
// keep parsing them.
type Handler struct {
	licenses *license.Service
	keys     *apikey.Service
	voices   *voice.Service
	cfg      *appconfig.Service
}

func NewHandler(licenses *license.Service, keys *apikey.Service, voices *voice.Service, cfg *appconfig.Service) *Handler {
	return &Handler{licenses: licenses, keys: keys, voices: voices, cfg: cfg}
}

func (h *Handler) Register(public router.PublicRouter) {
	public.POST("/api", h.dispatch)
}

type request struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Mac    string `json:"mac"`
	Count  int64  `json:"count"`
	APIKey string `json:"api_key"`
}

func (h *Handler) dispatch(c *gin.Context) {
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Invalid request"})
		return
	}

	ctx := c.Request.Context()

	switch req.Action {
	case "check":
		lic, err := h.licenses.CheckDevice(ctx, req.Key, req.Mac)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "credit": lic.Credit})

	case "debit":
		balance, err := h.licenses.Debit(ctx, req.Key, req.Mac, req.Count)
		if err != nil {
			if errutil.StatusOf(err) == errutil.StatusInvalidOperation {
				c.JSON(http.StatusOK, gin.H{"ok": false, "msg": message(err), "credit": balance})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "credit": balance})

	case "refund":
		balance, err := h.licenses.Refund(ctx, req.Key, req.Mac, req.Count)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "credit": balance})

	case "next_api_key":
		key, err := h.keys.NextActive(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "api_key": key.APIKey})

	case "release_api_key":
		// acknowledged no-op, kept for older consoles
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "deactivate_api_key":
		if _, err := h.keys.Deactivate(ctx, req.APIKey); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "get_voices":
		rows, err := h.voices.ListActive(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		out := make([]gin.H, 0, len(rows))
		for _, v := range rows {
			out = append(out, gin.H{"name": v.Name, "voice_id": v.VoiceID})
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "voices": out})

	case "get_config":
		payload, err := h.cfg.Public(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "config": payload})

	default:
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Unknown action"})
	}
}

func fail(c *gin.Context, err error) {
	if errutil.StatusOf(err) == errutil.StatusInternal || errutil.StatusOf(err) == errutil.StatusUnknown {
		zap.L().Error("console action failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": false, "msg": message(err)})
}

func message(err error) string {
	var base errutil.BaseError
	if errors.As(err, &base) {
		return base.Message
	}
	return err.Error()
}
