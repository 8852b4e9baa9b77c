package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_storefront/internal/middleware"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/service"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// SessionHandler attaches and detaches storefront accounts.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Login handles POST /v1/session/login. The bearer token is validated by
// the JWT middleware and forwarded to the remote collection service.
func (h *SessionHandler) Login(c *gin.Context) {
	account := middleware.GetAccount(c)
	if account == nil {
		utils.Error(c, 401, "AUTH_REQUIRED", "Missing authorization header")
		return
	}
	sessionID := middleware.GetSessionID(c)

	err := h.sessions.Login(c.Request.Context(), sessionID, account, middleware.GetToken(c))
	data, ok := h.collections(c, sessionID)
	if !ok {
		return
	}
	data["account"] = account

	if err != nil {
		status := statusFor(err)
		if status != 202 {
			writeError(c, err)
			return
		}
		data["syncError"] = utils.ErrorInfo{Code: utils.ErrorCode(err), Message: err.Error()}
		utils.Success(c, 202, "Logged in; collections not yet synchronized", data)
		return
	}
	utils.Success(c, 200, "Logged in", data)
}

// Logout handles POST /v1/session/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if err := h.sessions.Logout(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, 200, "Logged out", nil)
}

func (h *SessionHandler) collections(c *gin.Context, sessionID string) (gin.H, bool) {
	withhold := h.sessions.Prices().GatesPrices() && !h.sessions.Account(sessionID).IsActive()
	data := gin.H{}
	for _, kind := range models.Kinds {
		svc, err := h.sessions.Get(c.Request.Context(), sessionID, kind)
		if err != nil {
			writeError(c, err)
			return nil, false
		}
		data[string(kind)] = present(svc.Snapshot(), withhold)
	}
	return data, true
}
