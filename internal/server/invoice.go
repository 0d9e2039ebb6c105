package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/opencrmhq/opencrm/internal/invoice/domain"
)

func (s *Server) ListInvoices(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	limit, offset := parsePagination(c)
	invoices, total, err := s.invoiceSvc.List(c.Request.Context(), orgID, invoicedomain.ListQuery{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(invoices, total))
}

func (s *Server) GetInvoice(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	found, err := s.invoiceSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) CreateInvoice(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	var req invoicedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	created, err := s.invoiceSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req invoicedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	updated, err := s.invoiceSvc.Update(c.Request.Context(), orgID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.invoiceSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// FinalizeInvoice freezes the invoice totals and stamps issue and due
// dates. Finalizing twice is a conflict, not a no-op.
func (s *Server) FinalizeInvoice(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	finalized, err := s.invoiceSvc.Finalize(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, finalized)
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paid, err := s.invoiceSvc.MarkPaid(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, paid)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cancelled, err := s.invoiceSvc.Cancel(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelled)
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	document, err := s.invoiceSvc.RenderPDF(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", id))
	c.Data(http.StatusOK, "application/pdf", document)
}
