package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// ListLeadsResponse wraps a page of leads and pagination information.
type ListLeadsResponse struct {
	Leads      []domain.Lead `json:"leads"`
	Pagination Pagination    `json:"pagination"`
}

// ListLeads godoc
// @ID          listLeads
// @Summary     List captured leads (paginated)
// @Description Returns leads newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Leads
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       sender_id      query   string  false "Only leads from this Messenger sender (PSID)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"leads::1:20:3:1717236000000000000\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLeadsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads [get]
func (h *Handlers) ListLeads(c *gin.Context) {
	ctx := c.Request.Context()
	sender := strings.TrimSpace(c.Query("sender_id"))
	page, pageSize := clampPagination(c)

	if count, latest, err := h.leads.Stats(ctx, sender); err == nil {
		etag := fmt.Sprintf(`W/"leads:%s:%d:%d:%d:%d"`, sender, page, pageSize, count, unixNano(latest))
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.leads.ListPage(ctx, sender, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list leads")
		return
	}
	ok(c, http.StatusOK, ListLeadsResponse{
		Leads:      items,
		Pagination: newPagination(page, pageSize, total),
	})
}
