package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

// Borrowings is what the handlers need from the borrowing coordinator.
type Borrowings interface {
	Borrow(ctx context.Context, titleID uuid.UUID, borrowerID uuid.UUID) (ledger.BorrowingRecord, error)
	ReturnNow(ctx context.Context, recordID uuid.UUID) (ledger.BorrowingRecord, error)
	ListBorrowings(ctx context.Context, filter ledger.BorrowingFilter) ([]ledger.BorrowingRecord, error)
	StockRecordOf(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error)
	StockLogOf(ctx context.Context, titleID uuid.UUID) ([]ledger.StockLogEntry, error)
	BorrowerByID(ctx context.Context, borrowerID uuid.UUID) (ledger.Borrower, error)
}

// Handler serves the borrowing and catalog routes.
type Handler struct {
	borrowings Borrowings
	catalog    ledger.Catalog
}

// NewHandler creates a Handler.
func NewHandler(borrowings Borrowings, catalog ledger.Catalog) *Handler {
	return &Handler{borrowings: borrowings, catalog: catalog}
}

type borrowRequest struct {
	BookID     string `json:"bookId" binding:"required"`
	BorrowerID string `json:"borrowerId" binding:"required"`
}

type returnRequest struct {
	ID string `json:"id" binding:"required"`
}

type registerBookRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title" binding:"required"`
	Quantity int    `json:"quantity"`
}

type registerBorrowerRequest struct {
	MembershipID string `json:"membershipId" binding:"required"`
	Name         string `json:"name" binding:"required"`
}

// Borrow handles POST /borrow/book.
func (h *Handler) Borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Join(ErrInvalidBody, err))
		return
	}

	titleID, err := parseID(req.BookID)
	if err != nil {
		respondError(c, err)
		return
	}

	borrowerID, err := parseID(req.BorrowerID)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.borrowings.Borrow(c.Request.Context(), titleID, borrowerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}

// Return handles POST /borrow/book/return. The return date is the server's clock.
func (h *Handler) Return(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Join(ErrInvalidBody, err))
		return
	}

	recordID, err := parseID(req.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.borrowings.ReturnNow(c.Request.Context(), recordID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}

// List handles GET /borrow/book/list. Listings tolerate replica lag.
func (h *Handler) List(c *gin.Context) {
	filter := ledger.BorrowingFilter{Status: ledger.Status(c.Query("status"))}

	var err error

	if filter.BorrowerID, err = parseOptionalID(c.Query("borrowerId")); err != nil {
		respondError(c, err)
		return
	}

	if filter.TitleID, err = parseOptionalID(c.Query("bookId")); err != nil {
		respondError(c, err)
		return
	}

	records, err := h.borrowings.ListBorrowings(ledger.WithEventualConsistency(c.Request.Context()), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, records)
}

// RegisterBook handles POST /book.
func (h *Handler) RegisterBook(c *gin.Context) {
	var req registerBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Join(ErrInvalidBody, err))
		return
	}

	titleID, err := parseOptionalID(req.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	stock, err := h.catalog.RegisterTitle(c.Request.Context(), ledger.Title{ID: titleID, Name: req.Title}, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, stock)
}

// StockOf handles GET /book/:id/stock.
func (h *Handler) StockOf(c *gin.Context) {
	titleID, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	stock, err := h.borrowings.StockRecordOf(c.Request.Context(), titleID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, stock)
}

// StockLogOf handles GET /book/:id/stock-log.
func (h *Handler) StockLogOf(c *gin.Context) {
	titleID, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.borrowings.StockLogOf(ledger.WithEventualConsistency(c.Request.Context()), titleID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, entries)
}

// RegisterBorrower handles POST /borrower.
func (h *Handler) RegisterBorrower(c *gin.Context) {
	var req registerBorrowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Join(ErrInvalidBody, err))
		return
	}

	borrower, err := h.catalog.RegisterBorrower(c.Request.Context(), ledger.Borrower{
		MembershipID: req.MembershipID,
		Name:         req.Name,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, borrower)
}

// Borrower handles GET /borrower/:id.
func (h *Handler) Borrower(c *gin.Context) {
	borrowerID, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	borrower, err := h.borrowings.BorrowerByID(c.Request.Context(), borrowerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, borrower)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidID, err)
	}

	return id, nil
}

func parseOptionalID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}

	return parseID(raw)
}
