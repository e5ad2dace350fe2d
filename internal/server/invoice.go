package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/roomwatt/internal/billing/domain"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/period"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
)

const (
	proofFormField = "proof"
	sniffLen       = 512
	// room for multipart boundaries and headers around the file part
	multipartOverhead = 1 << 20
)

func (s *Server) GenerateInvoices(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req billingdomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, bindError(err))
		return
	}

	var p period.Period
	if raw := strings.TrimSpace(req.Period); raw != "" {
		parsed, err := period.Parse(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		p = parsed
	} else {
		p = period.Of(s.clock.Now(), s.metering.Get().Location())
	}

	result, err := s.billingSvc.GenerateMonthlyInvoices(c.Request.Context(), actor, p)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListInvoices(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var filter reportingdomain.InvoiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportingSvc.ListInvoices(c.Request.Context(), actor, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListMyInvoices(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var query monthPageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportingSvc.TenantInvoices(c.Request.Context(), actor, query.Month, query.Page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id := invoiceParam(c)

	item, err := s.invoiceSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id := invoiceParam(c)

	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

func (s *Server) SubmitInvoiceProof(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id := invoiceParam(c)

	if s.cfg.ProofMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.ProofMaxBytes+multipartOverhead)
	}

	header, err := c.FormFile(proofFormField)
	if err != nil {
		if isBodyTooLarge(err) {
			AbortWithError(c, invoicedomain.ErrProofTooLarge)
			return
		}
		AbortWithError(c, newValidationError(proofFormField, "required", "proof file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		AbortWithError(c, err)
		return
	}
	head = head[:n]

	resp, err := s.invoiceSvc.SubmitProof(c.Request.Context(), actor, invoicedomain.SubmitProofRequest{
		InvoiceID:   id,
		Filename:    header.Filename,
		ContentType: http.DetectContentType(head),
		Size:        header.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConfirmInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Confirm(c.Request.Context(), actor, invoiceParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Reject(c.Request.Context(), actor, invoiceParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func invoiceParam(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("invoice_id", id)
	return id
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
