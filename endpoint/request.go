package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oceanvince/mangxia/middleware"
	"github.com/oceanvince/mangxia/service"
	"github.com/oceanvince/mangxia/util"
)

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

func (f *flexFloat) float() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// parseTime reads a date or timestamp. An empty string yields nil.
func parseTime(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD) or an RFC3339 timestamp", field)
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: fmt.Sprintf("Invalid %s", name),
			Err: err,
		})
		return uuid.Nil, false
	}
	return id, true
}

func getWorkflow(c *gin.Context) (*service.Workflow, bool) {
	w := middleware.GetWorkflow(c)
	if w == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Workflow not available",
			Err: errors.New("workflow is nil"),
		})
		return nil, false
	}
	return w, true
}

// respondError writes err with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	msg := "Internal server error"
	var serr *service.Error
	if errors.As(err, &serr) && serr.Msg != "" {
		msg = serr.Msg
	}
	params := util.APIErrorParams{Msg: msg, Err: err}

	switch service.KindOf(err) {
	case service.KindValidation:
		util.CallUserError(c, params)
	case service.KindNotFound:
		util.CallErrorNotFound(c, params)
	case service.KindConflict, service.KindInvalidState:
		util.CallConflict(c, params)
	case service.KindTimeout:
		util.CallTimeout(c, params)
	default:
		util.CallServerError(c, params)
	}
}
