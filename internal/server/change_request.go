package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	changerequestdomain "github.com/smallbiznis/vendora/internal/changerequest/domain"
	"github.com/smallbiznis/vendora/internal/slotstorage"
)

type submitChangeRequestRequest struct {
	RequestKey       string               `json:"request_key"`
	CurrentProductID string               `json:"current_product_id"`
	NewProductID     string               `json:"new_product_id"`
	Hint             *slotstorage.Address `json:"hint"`
	Reason           string               `json:"reason"`
	RequestedBy      string               `json:"requested_by"`
}

func (s *Server) SubmitChangeRequest(c *gin.Context) {
	var req submitChangeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.changeRequestSvc.Submit(c.Request.Context(), changerequestdomain.SubmitRequest{
		MachineID:        strings.TrimSpace(c.Param("id")),
		RequestKey:       strings.TrimSpace(req.RequestKey),
		CurrentProductID: strings.TrimSpace(req.CurrentProductID),
		NewProductID:     strings.TrimSpace(req.NewProductID),
		Hint:             req.Hint,
		Reason:           strings.TrimSpace(req.Reason),
		RequestedBy:      strings.TrimSpace(req.RequestedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordChangeRequest(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListChangeRequests(c *gin.Context) {
	var query struct {
		Status  string `form:"status"`
		SortBy  string `form:"sort_by"`
		OrderBy string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.changeRequestSvc.ListByMachine(c.Request.Context(), strings.TrimSpace(c.Param("id")), changerequestdomain.ListRequest{
		Status:  strings.TrimSpace(query.Status),
		SortBy:  strings.TrimSpace(query.SortBy),
		OrderBy: strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetChangeRequestByID(c *gin.Context) {
	resp, err := s.changeRequestSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type decisionRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Notes      string `json:"notes"`
}

func (s *Server) ApproveChangeRequest(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.changeRequestSvc.Approve(c.Request.Context(), changerequestdomain.DecisionRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		ReviewedBy: strings.TrimSpace(req.ReviewedBy),
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordChangeRequestReview(c.Request.Context(), "approved")
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectChangeRequest(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.changeRequestSvc.Reject(c.Request.Context(), changerequestdomain.DecisionRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		ReviewedBy: strings.TrimSpace(req.ReviewedBy),
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordChangeRequestReview(c.Request.Context(), "rejected")
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
