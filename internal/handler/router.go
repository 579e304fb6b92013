package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/middleware"
)

// Handlers 路由需要的全部处理器
type Handlers struct {
	Application *ApplicationHandler
	Property    *PropertyHandler
	Tenant      *TenantHandler
	Audit       *AuditHandler
}

// RouteOptions 认证与限流中间件
type RouteOptions struct {
	JWTSecret string
	Issuer    string
	// DecisionLimiter 作用于审批、拒绝、删除、终止等写操作，可为 nil
	DecisionLimiter gin.HandlerFunc
}

// RegisterRoutes 注册 /api/v1 下的业务路由
func RegisterRoutes(r gin.IRouter, h Handlers, opts RouteOptions) {
	RegisterValidators()

	limited := []gin.HandlerFunc{}
	if opts.DecisionLimiter != nil {
		limited = append(limited, opts.DecisionLimiter)
	}
	decide := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limited...), handler)
	}

	v1 := r.Group("/api/v1")

	// 可用性查询允许匿名
	public := v1.Group("")
	public.Use(middleware.OptionalAuthMiddleware(opts.JWTSecret, opts.Issuer))
	{
		public.GET("/properties/:id/units/:unit/availability", h.Property.CheckAvailability)
	}

	authed := v1.Group("")
	authed.Use(middleware.JWTMiddleware(opts.JWTSecret, opts.Issuer))

	properties := authed.Group("/properties")
	{
		properties.POST("", middleware.RoleMiddleware(constants.RoleOwner, constants.RoleAdmin), h.Property.CreateProperty)
		properties.GET("", h.Property.ListMyProperties)
		properties.GET("/:id", h.Property.GetProperty)
		properties.GET("/:id/tenants", h.Property.ListTenants)
	}

	applications := authed.Group("/applications")
	{
		applications.POST("", h.Application.SubmitApplication)
		applications.GET("", h.Application.ListApplications)
		applications.GET("/:id", h.Application.GetApplication)
		applications.DELETE("/:id", decide(h.Application.DeleteApplication)...)
		applications.POST("/:id/approve", decide(h.Application.ApproveApplication)...)
		applications.POST("/:id/reject", decide(h.Application.RejectApplication)...)
		applications.POST("/:id/documents", h.Application.AttachDocument)
		applications.GET("/:id/documents", h.Application.ListDocuments)
		applications.GET("/:id/audit", h.Audit.ListApplicationAudit)
	}

	tenants := authed.Group("/tenants")
	{
		tenants.GET("/:id", h.Tenant.GetTenant)
		tenants.GET("/:id/payments", h.Tenant.ListPayments)
		tenants.POST("/:id/terminate", decide(h.Tenant.TerminateTenancy)...)
		tenants.GET("/:id/audit", h.Audit.ListTenantAudit)
	}
}
