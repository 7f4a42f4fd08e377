package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
)

func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	resp, err := s.customerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

func (s *Server) GetCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := s.customerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) CreatePackage(c *gin.Context) {
	var req productdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.QueueName = strings.TrimSpace(req.QueueName)

	resp, err := s.packageSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

func (s *Server) ListPackages(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}
	resp, err := s.packageSvc.List(c.Request.Context(), productdomain.ListFilter{Active: active})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) UpdatePackage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req productdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id

	resp, err := s.packageSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) SyncPackageToRouter(c *gin.Context) {
	packageID, ok := pathID(c)
	if !ok {
		return
	}
	routerID, ok := pathParamID(c, "router_id")
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.SyncPackageToRouter(c.Request.Context(), subscriptiondomain.SyncPackageRequest{
		PackageID: packageID,
		RouterID:  routerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) RemovePackageFromRouter(c *gin.Context) {
	packageID, ok := pathID(c)
	if !ok {
		return
	}
	routerID, ok := pathParamID(c, "router_id")
	if !ok {
		return
	}
	err := s.subscriptionSvc.RemovePackageFromRouter(c.Request.Context(), subscriptiondomain.SyncPackageRequest{
		PackageID: packageID,
		RouterID:  routerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"package_id": packageID, "router_id": routerID, "removed": true})
}

func (s *Server) DeletePackage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.packageSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"id": id, "deleted": true})
}

func (s *Server) CreateRouter(c *gin.Context) {
	var req routerdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.IPAddress = strings.TrimSpace(req.IPAddress)

	resp, err := s.routerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

func (s *Server) TestRouter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	router, err := s.routerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	res := s.gateway.TestConnection(c.Request.Context(), router)
	respondData(c, gin.H{"success": res.Success, "message": res.Message})
}

func (s *Server) ListActiveSessions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	router, err := s.routerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, s.gateway.ActiveConnections(c.Request.Context(), router))
}

func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
