package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fixology/fixology/internal/entitlement"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
)

type createShopBody struct {
	Name       string `json:"name"`
	Plan       string `json:"plan"`
	IsTestShop bool   `json:"is_test_shop"`
}

func (s *Server) CreateShop(c *gin.Context) {
	var body createShopBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	shop, err := s.shopSvc.Create(c.Request.Context(), shopdomain.CreateShopRequest{
		Name:       strings.TrimSpace(body.Name),
		Plan:       shopdomain.Plan(strings.ToUpper(strings.TrimSpace(body.Plan))),
		IsTestShop: body.IsTestShop,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, shop)
}

type listShopsQuery struct {
	Status    string `form:"status"`
	Plan      string `form:"plan"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

func (s *Server) ListShops(c *gin.Context) {
	var query listShopsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.shopSvc.List(c.Request.Context(), shopdomain.ListShopsRequest{
		Status:    strings.TrimSpace(query.Status),
		Plan:      strings.TrimSpace(query.Plan),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Shops, "page_info": resp.PageInfo})
}

func (s *Server) GetShop(c *gin.Context) {
	shop, err := s.shopSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

func (s *Server) GetShopEntitlements(c *gin.Context) {
	shop, err := s.shopSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entitlement.Summarize(shop, s.clock.Now()))
}

type suspendShopBody struct {
	Reason string `json:"reason"`
}

func (s *Server) SuspendShop(c *gin.Context) {
	var body suspendShopBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	shop, err := s.shopSvc.Suspend(c.Request.Context(), shopdomain.SuspendShopRequest{
		ShopID: c.Param("id"),
		Reason: strings.TrimSpace(body.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

func (s *Server) ReactivateShop(c *gin.Context) {
	shop, err := s.shopSvc.Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

type changePlanBody struct {
	Plan string `json:"plan"`
}

func (s *Server) ChangeShopPlan(c *gin.Context) {
	var body changePlanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	shop, err := s.shopSvc.ChangePlan(c.Request.Context(), shopdomain.ChangePlanRequest{
		ShopID: c.Param("id"),
		Plan:   shopdomain.Plan(strings.ToUpper(strings.TrimSpace(body.Plan))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

type extendTrialBody struct {
	Days int `json:"days"`
}

func (s *Server) ExtendShopTrial(c *gin.Context) {
	var body extendTrialBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	shop, err := s.shopSvc.ExtendTrial(c.Request.Context(), shopdomain.ExtendTrialRequest{
		ShopID: c.Param("id"),
		Days:   body.Days,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

type applyCreditBody struct {
	DeltaCents int64  `json:"delta_cents"`
	Reason     string `json:"reason"`
}

func (s *Server) ApplyShopCredit(c *gin.Context) {
	var body applyCreditBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.shopSvc.ApplyCredit(c.Request.Context(), shopdomain.ApplyCreditRequest{
		ShopID:     c.Param("id"),
		DeltaCents: body.DeltaCents,
		Reason:     strings.TrimSpace(body.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListShopCreditLedger(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := s.shopSvc.ListCreditLedger(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

type cancelSubscriptionBody struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelShopSubscription(c *gin.Context) {
	var body cancelSubscriptionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	shop, err := s.shopSvc.CancelSubscription(c.Request.Context(), shopdomain.CancelSubscriptionRequest{
		ShopID: c.Param("id"),
		Reason: strings.TrimSpace(body.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

func (s *Server) DeleteTestShop(c *gin.Context) {
	if err := s.shopSvc.DeleteTestShop(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
