package handler

import (
	"context"
	"net/http"
	"time"

	"growchat/internal/app/chat"
	"growchat/internal/pkg/errs"
	"growchat/internal/pkg/logx"
	"growchat/internal/pkg/resp"
)

const (
	healthTimeout = 2 * time.Second
	serviceName   = "Grow Chat Server"
)

type healthPayload struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	chat.Stats
}

// HandleHealth reports liveness together with the router's connection and room counts.
func HandleHealth(router *chat.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		stats, err := router.Stats(ctx)
		if err != nil {
			logx.Error(err, "Health check failed to read router stats")

			unavailable := errs.NewError(errs.ErrUnknown)
			resp.RespondJSON(w, r, http.StatusServiceUnavailable, resp.JSONResponse{
				Code:    unavailable.Code,
				Message: unavailable.Message,
				Data:    healthPayload{Status: "unavailable", Service: serviceName},
			})
			return
		}

		logx.Debug("Health check endpoint hit", "connections", stats.Connections)

		resp.RespondSuccess(w, r, healthPayload{
			Status:  "ok",
			Service: serviceName,
			Stats:   stats,
		})
	}
}
