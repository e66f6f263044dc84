package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

type MarketingController struct {
	marketing services.MarketingService
}

func NewMarketingController(marketing services.MarketingService) *MarketingController {
	return &MarketingController{marketing: marketing}
}

// ListActive handles GET /marketing/campaigns?kind=.
func (mc *MarketingController) ListActive(c *gin.Context) {
	campaigns, err := mc.marketing.ListActive(c.Request.Context(), models.CampaignKind(c.Query("kind")))
	if err != nil {
		c.Error(err)
		return
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	c.JSON(http.StatusOK, gin.H{"data": campaigns})
}

// ValidateDiscount handles POST /marketing/discounts/validate.
func (mc *MarketingController) ValidateDiscount(c *gin.Context) {
	var req models.ValidateDiscountRequest
	if !bindJSON(c, &req) {
		return
	}
	quote, err := mc.marketing.ValidateCode(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (mc *MarketingController) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := mc.marketing.Subscribe(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": true})
}

func (mc *MarketingController) Unsubscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := mc.marketing.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": false})
}

// ListCampaigns handles GET /admin/campaigns.
func (mc *MarketingController) ListCampaigns(c *gin.Context) {
	page, limit := pageParams(c)
	campaigns, total, err := mc.marketing.ListCampaigns(c.Request.Context(), page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listOf(campaigns, page, limit, total))
}

func (mc *MarketingController) GetCampaign(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	campaign, err := mc.marketing.GetCampaign(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (mc *MarketingController) CreateCampaign(c *gin.Context) {
	var req models.CampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	campaign, err := mc.marketing.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (mc *MarketingController) UpdateCampaign(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.CampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	campaign, err := mc.marketing.UpdateCampaign(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (mc *MarketingController) DeleteCampaign(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := mc.marketing.DeleteCampaign(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
