package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/illmade-knight/random-user/app"
)

type valueRequest struct {
	Value string `json:"value" binding:"required"`
}

func (s *Server) getState(c *gin.Context) {
	s.respondState(c)
}

// listUsers returns the whole list, or one gender projection when
// ?gender= is given.
func (s *Server) listUsers(c *gin.Context) {
	st, err := s.app.State(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	gender := c.Query("gender")
	if gender == "" {
		c.JSON(http.StatusOK, st.Users)
		return
	}
	tab, err := app.ParseTab(gender)
	if err != nil {
		s.respondError(c, err)
		return
	}
	st.Tab = tab
	c.JSON(http.StatusOK, st.Active())
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.app.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) refresh(c *gin.Context) {
	if err := s.app.Refresh(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) fetchMore(c *gin.Context) {
	if err := s.app.FetchMore(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) setMode(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.app.SetMode(c.Request.Context(), app.Mode(req.Value)); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) setTab(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tab, err := app.ParseTab(req.Value)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.app.SelectTab(c.Request.Context(), tab); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) setLayout(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.app.SelectLayout(c.Request.Context(), app.Layout(req.Value)); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) toggleSelection(c *gin.Context) {
	if err := s.app.ToggleSelect(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) cancelSelection(c *gin.Context) {
	if err := s.app.Cancel(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondState(c)
}

func (s *Server) confirmDelete(c *gin.Context) {
	removed, err := s.app.ConfirmDelete(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("X-Removed-Count", strconv.Itoa(removed))
	s.respondState(c)
}
