package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
)

type createTemplateRequest struct {
	Code  string                          `json:"code"`
	Name  string                          `json:"name"`
	Slots []templatedomain.SlotDefinition `json:"slots"`
}

func (s *Server) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.Create(c.Request.Context(), templatedomain.CreateRequest{
		Code:  strings.TrimSpace(req.Code),
		Name:  strings.TrimSpace(req.Name),
		Slots: req.Slots,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTemplates(c *gin.Context) {
	var query struct {
		Status  string `form:"status"`
		SortBy  string `form:"sort_by"`
		OrderBy string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.List(c.Request.Context(), templatedomain.ListRequest{
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

func (s *Server) GetTemplateByID(c *gin.Context) {
	resp, err := s.templateSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateTemplateRequest struct {
	Name  *string                         `json:"name"`
	Slots []templatedomain.SlotDefinition `json:"slots"`
}

func (s *Server) UpdateTemplate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.Update(c.Request.Context(), templatedomain.UpdateRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Name:  req.Name,
		Slots: req.Slots,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PublishTemplate(c *gin.Context) {
	resp, err := s.templateSvc.Publish(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetireTemplate(c *gin.Context) {
	resp, err := s.templateSvc.Retire(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
