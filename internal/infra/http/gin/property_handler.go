package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"arrienda/internal/app/dto"
	domainproperty "arrienda/internal/domain/property"
)

type PropertyHTTP interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
}

type PropertyHandler struct {
	Repo   domainproperty.Repository
	Logger *slog.Logger
}

func (h PropertyHandler) List(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := dto.PropertyList{Items: make([]dto.PropertySummary, 0, len(items))}
	for _, p := range items {
		out.Items = append(out.Items, dto.PropertyFromDomain(p))
	}
	out.Total = len(out.Items)
	c.JSON(http.StatusOK, out)
}

func (h PropertyHandler) Get(c *gin.Context) {
	p, err := h.Repo.ByID(c.Request.Context(), domainproperty.ID(c.Param("id")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PropertyFromDomain(p))
}

type createPropertyRequest struct {
	Title      string `json:"title"`
	City       string `json:"city"`
	PriceCents int64  `json:"price_cents"`
	CoverURL   string `json:"cover_url"`
}

func (h PropertyHandler) Create(c *gin.Context) {
	principal, ok := requireRole(c, "inmobiliaria")
	if !ok {
		return
	}
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p, err := domainproperty.New(domainproperty.CreateParams{
		ID:         domainproperty.ID(uuid.NewString()),
		OwnerID:    principal.ID,
		Title:      req.Title,
		City:       req.City,
		PriceCents: req.PriceCents,
		CoverURL:   req.CoverURL,
		Now:        time.Now(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Repo.Save(c.Request.Context(), p); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.PropertyFromDomain(p))
}

func (h PropertyHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainproperty.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domainproperty.ErrTitleRequired),
		errors.Is(err, domainproperty.ErrOwnerRequired),
		errors.Is(err, domainproperty.ErrIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("property operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var _ PropertyHTTP = (*PropertyHandler)(nil)
