package endpoint

import (
	"github.com/gin-gonic/gin"

	"github.com/oceanvince/mangxia/middleware"
	"github.com/oceanvince/mangxia/model"
	"github.com/oceanvince/mangxia/service"
	"github.com/oceanvince/mangxia/util"
)

type resolvePlanRequest struct {
	Status                string     `json:"status" binding:"required"`
	DoctorSuggestedDosage *flexFloat `json:"doctorSuggestedDosage"`
	Remarks               *string    `json:"remarks"`
}

// ResolvePlan godoc
// @Summary      Confirm or reject a plan
// @Description  Moves a pending plan to active or rejected. Confirm without a dose adopts the system suggestion.
// @Tags         medication-plans
// @Accept       json
// @Produce      json
// @Param        planId  path      string              true  "Plan ID"
// @Param        plan    body      resolvePlanRequest  true  "Decision"
// @Success      200     {object}  util.APIResponse{data=model.MedicationPlan}
// @Failure      400     {object}  util.APIResponse
// @Failure      404     {object}  util.APIResponse
// @Failure      409     {object}  util.APIResponse
// @Router       /medication-plan/{planId} [put]
func ResolvePlan(c *gin.Context) {
	w, ok := getWorkflow(c)
	if !ok {
		return
	}
	planID, ok := parseUUIDParam(c, "planId")
	if !ok {
		return
	}

	var req resolvePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request body",
			Err: err,
		})
		return
	}
	actor, _ := middleware.GetDoctorID(c)

	plan, err := w.ResolvePlan(c.Request.Context(), service.Resolution{
		PlanID:     planID,
		Status:     model.PlanStatus(req.Status),
		DoctorDose: req.DoctorSuggestedDosage.float(),
		Remarks:    req.Remarks,
		Actor:      actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Medication plan updated",
		Data: plan,
	})
}
