// file: internal/server/handlers.go
// version: 1.0.0
// guid: eb57a57a-fb13-4561-901e-5bcfbbe40932

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/resolver"
	"github.com/jdfalk/bookmeta/internal/server/middleware"
)

func (s *Server) resolveBook(c *gin.Context) {
	if s.services.Books == nil {
		RespondWithError(c, apperr.ConfigUnavailable("book resolution is not configured"))
		return
	}
	var req resolver.BookRequest
	if HandleBindError(c, c.ShouldBindJSON(&req)) {
		return
	}
	rec, err := s.services.Books.Resolve(c.Request.Context(), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) searchBooks(c *gin.Context) {
	if s.services.Books == nil {
		RespondWithError(c, apperr.ConfigUnavailable("book search is not configured"))
		return
	}
	var req BookSearchRequest
	if HandleBindError(c, c.ShouldBindJSON(&req)) {
		return
	}
	recs, err := s.services.Books.Search(c.Request.Context(), req.Query)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BookSearchResponse{
		BookList: ensureRecords(recs),
		Logs:     requestLogs(c),
	})
}

func (s *Server) resolveAudiobook(c *gin.Context) {
	if s.services.Audiobooks == nil {
		RespondWithError(c, apperr.ConfigUnavailable("audiobook resolution is not configured"))
		return
	}
	var req resolver.AudiobookRequest
	if HandleBindError(c, c.ShouldBindJSON(&req)) {
		return
	}
	res, err := s.services.Audiobooks.Resolve(c.Request.Context(), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AudiobookResponse{Success: true, Source: res.Source, Data: res.Data})
}

func (s *Server) searchAudiobooks(c *gin.Context) {
	if s.services.Audiobooks == nil {
		RespondWithError(c, apperr.ConfigUnavailable("audiobook search is not configured"))
		return
	}
	var req AudiobookSearchRequest
	if HandleBindError(c, c.ShouldBindJSON(&req)) {
		return
	}
	recs, err := s.services.Audiobooks.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AudiobookResponse{Success: true, Data: ensureRecords(recs)})
}

func (s *Server) matchAudible(c *gin.Context) {
	if s.services.Audiobooks == nil {
		RespondWithError(c, apperr.ConfigUnavailable("Audible lookups are not configured"))
		return
	}
	var req AudibleRequest
	if HandleBindError(c, c.ShouldBindJSON(&req)) {
		return
	}
	match, err := s.services.Audiobooks.MatchAudible(c.Request.Context(), req.Title, req.Author)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AudiobookResponse{Success: true, Source: resolver.SourceAudible, Data: match})
}

func (s *Server) submitDeadline(c *gin.Context) {
	if s.services.Deadlines == nil {
		RespondWithError(c, apperr.ConfigUnavailable("deadline submissions are not configured"))
		return
	}
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondWithError(c, apperr.Authentication("authentication required"))
		return
	}
	var sub resolver.DeadlineSubmission
	if HandleBindError(c, c.ShouldBindJSON(&sub)) {
		return
	}
	d, err := s.services.Deadlines.Submit(c.Request.Context(), userID, sub)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, DeadlineResponse{Success: true, Data: d})
}
