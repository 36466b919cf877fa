package endpoint

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oceanvince/mangxia/service"
	"github.com/oceanvince/mangxia/util"
)

type registerPatientRequest struct {
	Name                  string     `json:"name"`
	Gender                string     `json:"gender"`
	Phone                 string     `json:"phone"`
	DateOfBirth           string     `json:"dateOfBirth"`
	SurgeryType           string     `json:"surgeryType"`
	OperationDate         string     `json:"operationDate"`
	DischargeDate         string     `json:"dischargeDate"`
	DoctorID              string     `json:"doctorId"`
	MetricValue           *flexFloat `json:"metricValue"`
	DoctorSuggestedDosage *flexFloat `json:"doctorSuggestedDosage"`
	Remarks               string     `json:"remarks"`
}

func (r registerPatientRequest) registration() (service.Registration, error) {
	reg := service.Registration{
		Name:        r.Name,
		Gender:      r.Gender,
		Phone:       r.Phone,
		SurgeryType: r.SurgeryType,
		MetricValue: r.MetricValue.float(),
		DoctorDose:  r.DoctorSuggestedDosage.float(),
		Remarks:     r.Remarks,
	}
	var err error
	if reg.DateOfBirth, err = parseTime(r.DateOfBirth, "dateOfBirth"); err != nil {
		return reg, err
	}
	if reg.OperationDate, err = parseTime(r.OperationDate, "operationDate"); err != nil {
		return reg, err
	}
	if reg.DischargeDate, err = parseTime(r.DischargeDate, "dischargeDate"); err != nil {
		return reg, err
	}
	if r.DoctorID != "" {
		id, err := uuid.Parse(r.DoctorID)
		if err != nil {
			return reg, err
		}
		reg.DoctorID = &id
	}
	return reg, nil
}

// ListPatients godoc
// @Summary      List patients
// @Description  Every patient with the latest plan, pending plans first
// @Tags         patients
// @Produce      json
// @Success      200  {object}  util.APIResponse{data=[]service.PatientSummary}
// @Failure      500  {object}  util.APIResponse
// @Router       /patients [get]
func ListPatients(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}

	patients, err := w.ListPatients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Patients retrieved",
		Data: map[string]interface{}{"total": len(patients), "patients": patients},
	})
}

// GetPatient godoc
// @Summary      Get patient detail
// @Description  Patient record with plan history and measurements
// @Tags         patients
// @Produce      json
// @Param        id   path      string  true  "Patient ID"
// @Success      200  {object}  util.APIResponse{data=service.PatientDetail}
// @Failure      400  {object}  util.APIResponse
// @Failure      404  {object}  util.APIResponse
// @Router       /patients/{id} [get]
func GetPatient(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	patientID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := w.GetPatientDetail(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Patient retrieved",
		Data: detail,
	})
}

// GetPatientProfile godoc
// @Summary      Get patient profile
// @Tags         patients
// @Produce      json
// @Param        id   path      string  true  "Patient ID"
// @Success      200  {object}  util.APIResponse{data=model.Patient}
// @Failure      404  {object}  util.APIResponse
// @Router       /patients/{id}/profile [get]
func GetPatientProfile(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	patientID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	patient, err := w.GetPatientProfile(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Patient profile retrieved",
		Data: patient,
	})
}

// RegisterPatient godoc
// @Summary      Register a patient
// @Description  Creates the patient, an optional initial INR and an active plan for the prescribed dose
// @Tags         patients
// @Accept       json
// @Produce      json
// @Param        patient  body      registerPatientRequest  true  "Patient"
// @Success      201      {object}  util.APIResponse{data=service.RegistrationResult}
// @Failure      400      {object}  util.APIResponse
// @Router       /patients/register [post]
func RegisterPatient(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}

	var req registerPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request body",
			Err: err,
		})
		return
	}
	reg, err := req.registration()
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request body",
			Err: err,
		})
		return
	}

	result, err := w.RegisterPatient(c.Request.Context(), reg)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessCreated(c, util.APISuccessParams{
		Msg:  "Patient registered",
		Data: result,
	})
}

// GetCurrentStatus godoc
// @Summary      Current dosing status
// @Description  Latest plan of the patient and the dose currently in effect
// @Tags         patients
// @Produce      json
// @Param        id   path      string  true  "Patient ID"
// @Success      200  {object}  util.APIResponse{data=service.CurrentStatus}
// @Failure      404  {object}  util.APIResponse
// @Router       /patients/{id}/current-status [get]
func GetCurrentStatus(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	patientID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	status, err := w.GetCurrentStatus(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Current status retrieved",
		Data: status,
	})
}

// GetLatestActivePlans godoc
// @Summary      Latest plans
// @Description  Up to limit (default 3) active or pending plans, newest first
// @Tags         patients
// @Produce      json
// @Param        id     path      string  true   "Patient ID"
// @Param        limit  query     int     false  "Maximum number of plans"
// @Success      200    {object}  util.APIResponse{data=[]model.MedicationPlan}
// @Failure      404    {object}  util.APIResponse
// @Router       /patients/{id}/latest-active-plans [get]
func GetLatestActivePlans(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	patientID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	plans, err := w.GetLatestPlans(c.Request.Context(), patientID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Medication plans retrieved",
		Data: plans,
	})
}
