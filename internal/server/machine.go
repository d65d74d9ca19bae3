package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
)

type onboardMachineRequest struct {
	TemplateID string `json:"template_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Location   string `json:"location"`
}

func (s *Server) OnboardMachine(c *gin.Context) {
	var req onboardMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.machineSvc.Onboard(c.Request.Context(), machinedomain.OnboardRequest{
		TemplateID: strings.TrimSpace(req.TemplateID),
		Code:       strings.TrimSpace(req.Code),
		Name:       strings.TrimSpace(req.Name),
		Location:   strings.TrimSpace(req.Location),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMachines(c *gin.Context) {
	var query struct {
		Status     string `form:"status"`
		TemplateID string `form:"template_id"`
		SortBy     string `form:"sort_by"`
		OrderBy    string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.machineSvc.List(c.Request.Context(), machinedomain.ListRequest{
		Status:     strings.TrimSpace(query.Status),
		TemplateID: strings.TrimSpace(query.TemplateID),
		SortBy:     strings.TrimSpace(query.SortBy),
		OrderBy:    strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMachineByID(c *gin.Context) {
	resp, err := s.machineSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type replaceSlotsRequest struct {
	Assignments []machinedomain.SlotAssignment `json:"assignments"`
}

func (s *Server) ReplaceMachineSlots(c *gin.Context) {
	var req replaceSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.machineSvc.ReplaceAssignments(c.Request.Context(), machinedomain.ReplaceAssignmentsRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Assignments: req.Assignments,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateMachine(c *gin.Context) {
	resp, err := s.machineSvc.Activate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordMachineActivation(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DecommissionMachine(c *gin.Context) {
	resp, err := s.machineSvc.Decommission(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMachinePricing(c *gin.Context) {
	resp, err := s.machineSvc.PricingProjection(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadPriceCard(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reader, err := s.priceCardSvc.Generate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="price-card-`+id+`.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}
