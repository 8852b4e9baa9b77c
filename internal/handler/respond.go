package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_storefront/internal/middleware"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/service"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// collectionResponse is the wire form of a collection. With PriceOnRequest
// set every price field is zeroed and must not be displayed.
type collectionResponse struct {
	service.CollectionState
	PriceOnRequest bool `json:"priceOnRequest,omitempty"`
}

func present(state service.CollectionState, withhold bool) collectionResponse {
	if !withhold {
		return collectionResponse{CollectionState: state}
	}
	lines := make([]models.Line, len(state.Lines))
	for i, l := range state.Lines {
		l.UnitPrice = decimal.Zero
		l.Product.Price = decimal.Zero
		l.PriceLabel = ""
		lines[i] = l
	}
	state.Lines = lines
	state.TotalAmount = decimal.Zero
	return collectionResponse{CollectionState: state, PriceOnRequest: true}
}

// authorize returns the account of the request's bearer token. When the
// session is attached to an account, the bearer must be that account.
func authorize(c *gin.Context, sessions *service.SessionService) (*models.Account, bool) {
	bearer := middleware.GetAccount(c)
	attached := sessions.Account(middleware.GetSessionID(c))
	if attached != nil && (bearer == nil || bearer.ID != attached.ID) {
		utils.Error(c, 401, "AUTH_REQUIRED", "Session is signed in; present the account's bearer token")
		return nil, false
	}
	return bearer, true
}

// statusFor maps an application error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrStockExceeded):
		return 409
	case errors.Is(err, utils.ErrValidation):
		return 400
	case errors.Is(err, utils.ErrAuthRequired), errors.Is(err, utils.ErrInvalidToken):
		return 401
	case errors.Is(err, utils.ErrProductNotFound), errors.Is(err, utils.ErrLineNotFound):
		return 404
	case errors.Is(err, utils.ErrRemoteUnavailable), errors.Is(err, utils.ErrRemoteRejected):
		return 202
	default:
		return 500
	}
}

// respondMutation writes the outcome of a collection operation. Remote sync
// failures are not request failures: the optimistic local state stands and is
// returned with 202 and the sync error.
func respondMutation(c *gin.Context, err error, message string, state service.CollectionState, withhold bool) {
	if err == nil {
		utils.Success(c, 200, message, present(state, withhold))
		return
	}

	status := statusFor(err)
	if status == 202 {
		utils.Success(c, 202, "Saved locally; sync pending", gin.H{
			"collection": present(state, withhold),
			"syncError": utils.ErrorInfo{
				Code:    utils.ErrorCode(err),
				Message: err.Error(),
			},
		})
		return
	}
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == 500 {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
		return
	}
	utils.Error(c, status, utils.ErrorCode(err), err.Error())
}
