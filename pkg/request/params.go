package request

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"amulet-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const dayLayout = "2006-01-02"

// IntParam parses an optional integer query parameter. Absent or blank
// values yield nil.
func IntParam(c *gin.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errutil.InvalidOperation(fmt.Sprintf("%s must be an integer", name))
	}
	return &v, nil
}

// BoolParam parses an optional true/false query parameter.
func BoolParam(c *gin.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	switch raw {
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, errutil.InvalidOperation(fmt.Sprintf("%s must be true or false", name))
	}
}

// DayParam parses an optional YYYY-MM-DD query parameter as a calendar-day
// bound. When end is set the returned time is the start of the following
// day, suitable as an exclusive upper bound.
func DayParam(c *gin.Context, name string, end bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return nil, errutil.InvalidOperation(fmt.Sprintf("%s must be formatted as YYYY-MM-DD", name))
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
