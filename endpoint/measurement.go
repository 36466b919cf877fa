package endpoint

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/oceanvince/mangxia/service"
	"github.com/oceanvince/mangxia/util"
)

type submitMeasurementRequest struct {
	MetricType  string     `json:"metricType"`
	MetricValue *flexFloat `json:"metricValue"`
	Unit        string     `json:"unit"`
	MeasuredAt  string     `json:"measuredAt"`
}

func (r submitMeasurementRequest) input(patientID uuid.UUID) (service.MeasurementInput, error) {
	in := service.MeasurementInput{
		PatientID:  patientID,
		MetricType: r.MetricType,
		Unit:       r.Unit,
	}
	if r.MetricValue == nil {
		return in, errors.New("metricValue is required")
	}
	in.Value = float64(*r.MetricValue)
	measuredAt, err := parseTime(r.MeasuredAt, "measuredAt")
	if err != nil {
		return in, err
	}
	in.MeasuredAt = measuredAt
	return in, nil
}

// bindMeasurement reads a JSON body or a multipart form with an optional
// "image" file. The returned cleanup closes the uploaded file.
func bindMeasurement(c *gin.Context, patientID uuid.UUID) (service.MeasurementInput, func(), error) {
	noop := func() {}
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		var req submitMeasurementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return service.MeasurementInput{}, noop, err
		}
		in, err := req.input(patientID)
		return in, noop, err
	}

	req := submitMeasurementRequest{
		MetricType: c.PostForm("metricType"),
		Unit:       c.PostForm("unit"),
		MeasuredAt: c.PostForm("measuredAt"),
	}
	if raw := strings.TrimSpace(c.PostForm("metricValue")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return service.MeasurementInput{}, noop, fmt.Errorf("invalid metricValue %q", raw)
		}
		f := flexFloat(v)
		req.MetricValue = &f
	}
	in, err := req.input(patientID)
	if err != nil {
		return in, noop, err
	}

	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, noop, nil
	}
	if err != nil {
		return in, noop, err
	}
	file, err := header.Open()
	if err != nil {
		return in, noop, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			contentType = byExt
		}
	}
	in.Image = &service.ImageUpload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}
	return in, func() { _ = file.Close() }, nil
}

// SubmitMeasurement godoc
// @Summary      Submit a measurement
// @Description  Records a reading and opens a pending plan with the suggested dose. Accepts JSON or multipart with an "image" file.
// @Tags         metrics
// @Accept       json,mpfd
// @Produce      json
// @Param        id           path      string                    true   "Patient ID"
// @Param        measurement  body      submitMeasurementRequest  false  "Measurement"
// @Param        image        formData  file                      false  "Lab report"
// @Success      201          {object}  util.APIResponse{data=service.PlanCreationResult}
// @Failure      400          {object}  util.APIResponse
// @Failure      404          {object}  util.APIResponse
// @Failure      409          {object}  util.APIResponse
// @Router       /patients/{id}/metrics [post]
func SubmitMeasurement(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	patientID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	in, cleanup, err := bindMeasurement(c, patientID)
	defer cleanup()
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request body",
			Err: err,
		})
		return
	}

	result, err := w.SubmitMeasurement(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessCreated(c, util.APISuccessParams{
		Msg:  "Measurement recorded, plan awaiting review",
		Data: result,
	})
}

// ListMeasurements godoc
// @Summary      Measurement history
// @Tags         metrics
// @Produce      json
// @Param        id   path      string  true  "Patient ID"
// @Success      200  {object}  util.APIResponse{data=[]model.Measurement}
// @Failure      404  {object}  util.APIResponse
// @Router       /patients/{id}/metrics [get]
func ListMeasurements(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	patientID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	metrics, err := w.ListMeasurements(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Measurements retrieved",
		Data: metrics,
	})
}
