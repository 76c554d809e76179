package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/pkg/response"
)

type errorBody struct {
	Error   string            `json:"error"`
	Reason  string            `json:"reason"`
	Details map[string]string `json:"details,omitempty"`
}

// fail writes err as an error envelope with the status its kind maps to. Internal
// causes are logged and never exposed.
func fail(c *gin.Context, logger *logrus.Logger, err error) {
	e := application.AsError(err)
	if e.Kind == application.KindInternal && logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("request failed")
	}
	response.Error[any](c, e.HTTPStatus(), e.Reason, errorBody{Error: string(e.Kind), Reason: e.Reason, Details: e.Details})
}
