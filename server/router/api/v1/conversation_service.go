package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/uiucchat/chatcore/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type conversationResponse struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	CourseName string `json:"courseName"`
	ModelID    string `json:"modelId"`
	CreatedTs  int64  `json:"createdTs"`
	UpdatedTs  int64  `json:"updatedTs"`
}

const maxConversationPage = 200

// ─────────────────────────────────────────────────────────────────────────────
// Conversation history
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) listConversations(c *echo.Context) error {
	if s.Store == nil {
		return errNoStore()
	}
	find := &store.FindConversation{}
	if v := c.QueryParam("course_name"); v != "" {
		find.CourseName = &v
	}
	if v := c.QueryParam("user_email"); v != "" {
		find.UserEmail = &v
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxConversationPage)
	}
	find.Limit = &limit

	list, err := s.Store.ListConversations(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]conversationResponse, 0, len(list))
	for _, conv := range list {
		resp = append(resp, conversationResponse{
			UID:        conv.UID,
			Name:       conv.Name,
			CourseName: conv.CourseName,
			ModelID:    conv.ModelID,
			CreatedTs:  conv.CreatedTs,
			UpdatedTs:  conv.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) getConversation(c *echo.Context) error {
	if s.Store == nil {
		return errNoStore()
	}
	conv, err := s.Store.LoadConversation(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if conv == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *APIV1Service) deleteConversation(c *echo.Context) error {
	if s.Store == nil {
		return errNoStore()
	}
	uid := c.Param("uid")
	conv, err := s.Store.GetConversation(c.Request().Context(), storeFindByUID(uid))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if conv == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	if err := s.Store.DeleteConversation(c.Request().Context(), uid); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func errNoStore() error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, "conversation storage is not configured")
}

func storeFindByUID(uid string) *store.FindConversation {
	return &store.FindConversation{UID: &uid}
}
