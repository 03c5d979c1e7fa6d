package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/identity"
	"github.com/jmerrifield20/lostfound/internal/lostfound/service"
	"github.com/jmerrifield20/lostfound/internal/media"
	"go.uber.org/zap"
)

// ItemsHandler serves the item routes.
type ItemsHandler struct {
	svc           *service.ItemService
	sessions      *identity.SessionIssuer
	maxImageBytes int64
	logger        *zap.Logger
}

// NewItemsHandler creates a new ItemsHandler. sessions may be nil, in which
// case every request is anonymous.
func NewItemsHandler(svc *service.ItemService, sessions *identity.SessionIssuer, logger *zap.Logger) *ItemsHandler {
	return &ItemsHandler{
		svc:           svc,
		sessions:      sessions,
		maxImageBytes: media.DefaultMaxImageBytes,
		logger:        logger,
	}
}

// SetMaxImageBytes caps multipart image uploads.
func (h *ItemsHandler) SetMaxImageBytes(n int64) {
	if n > 0 {
		h.maxImageBytes = n
	}
}

// Register mounts the item routes on the given router group.
func (h *ItemsHandler) Register(rg *gin.RouterGroup) {
	items := rg.Group("/items", identity.OptionalSession(h.sessions))
	{
		items.GET("", h.ListItems)
		items.POST("", h.ReportItem)
		items.PUT("/:id", h.EditItem)
		items.DELETE("/:id", h.WithdrawItem)
	}
}

func ownerFromCtx(c *gin.Context) service.Owner {
	claims := identity.SessionFromCtx(c)
	if claims == nil {
		return service.Owner{}
	}
	return service.Owner{ID: claims.OwnerID, Contact: claims.Contact}
}

// ListItems handles GET /items. Genesis is not an item and is left out.
func (h *ItemsHandler) ListItems(c *gin.Context) {
	items, err := h.svc.Items(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, "list items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// ReportItem handles POST /items. It accepts JSON or a multipart form with an
// optional "image" file.
func (h *ItemsHandler) ReportItem(c *gin.Context) {
	in, ok := h.bindInput(c)
	if !ok {
		return
	}
	entry, err := h.svc.Report(c.Request.Context(), ownerFromCtx(c), in)
	if err != nil {
		abortWithError(c, h.logger, "report item", err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// EditItem handles PUT /items/:id.
func (h *ItemsHandler) EditItem(c *gin.Context) {
	in, ok := h.bindInput(c)
	if !ok {
		return
	}
	entry, err := h.svc.Edit(c.Request.Context(), ownerFromCtx(c), c.Param("id"), in)
	if err != nil {
		abortWithError(c, h.logger, "edit item", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// WithdrawItem handles DELETE /items/:id.
func (h *ItemsHandler) WithdrawItem(c *gin.Context) {
	if err := h.svc.Withdraw(c.Request.Context(), ownerFromCtx(c), c.Param("id")); err != nil {
		abortWithError(c, h.logger, "withdraw item", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemsHandler) bindInput(c *gin.Context) (service.ItemInput, bool) {
	var in service.ItemInput
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&in); err != nil {
			if tooLarge(err) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return in, false
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return in, false
		}
		return in, true
	}

	in = service.ItemInput{
		ID:           c.PostForm("id"),
		Kind:         c.PostForm("kind"),
		Title:        c.PostForm("title"),
		Description:  c.PostForm("description"),
		Location:     c.PostForm("location"),
		Date:         c.PostForm("date"),
		ImageURL:     c.PostForm("image_url"),
		OwnerID:      c.PostForm("owner_id"),
		OwnerContact: c.PostForm("owner_contact"),
	}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, true
	}
	if tooLarge(err) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return in, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return in, false
	}
	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
		return in, false
	}
	defer f.Close()

	uri, err := media.ReadDataURI(f, h.maxImageBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, media.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "field": "image"})
		return in, false
	}
	in.ImageURL = uri
	return in, true
}

// BodyLimit caps request bodies at limit bytes. Handlers answer reads past
// the cap with 413.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
