package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/service"
)

// apiError is the JSON error body: kind is stable, message is for humans.
type apiError struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func classify(err error) (int, apiError) {
	var ue *service.UnknownAssetError
	switch {
	case errors.As(err, &ue):
		return http.StatusBadRequest, apiError{Kind: "unknown_asset", Message: err.Error(), Suggestion: string(ue.Suggestion)}
	case errors.Is(err, finance.ErrInvalidConfig):
		return http.StatusBadRequest, apiError{Kind: "invalid_request", Message: err.Error()}
	case errors.Is(err, finance.ErrDataUnavailable):
		return http.StatusBadGateway, apiError{Kind: "data_unavailable", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, apiError{Kind: "timeout", Message: err.Error()}
	default:
		return http.StatusInternalServerError, apiError{Kind: "internal", Message: err.Error()}
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("handler error", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		s.logger.Info("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}
