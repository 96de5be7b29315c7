package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orgdomain "github.com/smallbiznis/orgstore/internal/organization/domain"
	"gorm.io/datatypes"
)

type CreateOrgRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.orgsvc.Create(c.Request.Context(), orgdomain.CreateRequest{
		Name:     req.OrganizationName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) GetOrganization(c *gin.Context) {
	name := c.Query("organization_name")
	if name == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.orgsvc.Get(c.Request.Context(), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type UpdateOrgRequest struct {
	OrganizationName    string `json:"organization_name"`
	NewOrganizationName string `json:"new_organization_name"`
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	var req UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.orgsvc.Rename(c.Request.Context(), principalFrom(c), orgdomain.RenameRequest{
		Name:    req.OrganizationName,
		NewName: req.NewOrganizationName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type DeleteOrgRequest struct {
	OrganizationName string `json:"organization_name"`
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	var req DeleteOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.orgsvc.Delete(c.Request.Context(), principalFrom(c), req.OrganizationName); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "organization deleted"})
}

type InsertRecordRequest struct {
	OrganizationName string         `json:"organization_name"`
	Doc              datatypes.JSON `json:"doc"`
}

func (s *Server) InsertRecord(c *gin.Context) {
	var req InsertRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if len(req.Doc) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.orgsvc.InsertRecord(c.Request.Context(), principalFrom(c), req.OrganizationName, req.Doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) ListRecords(c *gin.Context) {
	name := c.Query("organization_name")
	if name == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	records, err := s.orgsvc.ListRecords(c.Request.Context(), principalFrom(c), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) ListOrphans(c *gin.Context) {
	orphans, err := s.orgsvc.Orphans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orphans": orphans})
}
