package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type AssignmentHandler struct {
	svc *service.AssignmentService
}

func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{svc: svc}
}

// Unassign POST /assignments/:id/unassign
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	var req service.UnassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	assignment, err := h.svc.Unassign(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, assignment)
}
