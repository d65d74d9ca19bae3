package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vendora/internal/pricing"
)

type quoteRequest struct {
	ProductID      string   `json:"product_id"`
	BasePrice      *float64 `json:"base_price"`
	CommissionRate *float64 `json:"commission_rate"`
}

// QuotePrice computes a one-off vending price breakdown. When base_price is
// omitted but product_id is set, the product's catalog base price is used.
func (s *Server) QuotePrice(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	productID := strings.TrimSpace(req.ProductID)
	basePrice := req.BasePrice
	if basePrice == nil {
		if productID == "" {
			AbortWithError(c, newValidationError("base_price", "invalid_base_price", "base_price or product_id is required"))
			return
		}
		product, err := s.catalogSvc.Get(c.Request.Context(), productID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		basePrice = &product.BasePrice
	}

	rate := 0.0
	if req.CommissionRate != nil {
		rate = *req.CommissionRate
	}

	breakdown, err := pricing.Compute(s.policy.Get(), productID, *basePrice, rate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPriceComputation(c.Request.Context(), "quote")
	}
	c.JSON(http.StatusOK, gin.H{"data": breakdown})
}
