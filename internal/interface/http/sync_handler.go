package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/livequery"
	"github.com/oksasatya/go-social-sync/pkg/response"
)

// SyncHandler exposes methods and publications over plain HTTP for clients that do not
// hold a live connection.
type SyncHandler struct {
	Gateway   *application.Gateway
	Publisher *livequery.Publisher
	Logger    *logrus.Logger
}

func NewSyncHandler(gw *application.Gateway, pub *livequery.Publisher, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{Gateway: gw, Publisher: pub, Logger: logger}
}

type methodRequest struct {
	Params []json.RawMessage `json:"params"`
}

// Call POST /api/methods/:name with body {"params": [...]}
func (h *SyncHandler) Call(c *gin.Context) {
	var req methodRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	res, err := h.Gateway.Call(c.Request.Context(), c.GetString("userID"), c.Param("name"), req.Params)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"result": res}, "ok", nil)
}

// queryParams turns repeated ?param= values into publication arguments. Values that
// are valid JSON pass through; anything else is sent as a string.
func queryParams(c *gin.Context) []json.RawMessage {
	values := c.QueryArray("param")
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		if json.Valid([]byte(v)) {
			out = append(out, json.RawMessage(v))
			continue
		}
		b, _ := json.Marshal(v)
		out = append(out, b)
	}
	return out
}

// Snapshot GET /api/publications/:name?param=...
func (h *SyncHandler) Snapshot(c *gin.Context) {
	name := c.Param("name")
	collection, records, err := h.Publisher.Snapshot(c.Request.Context(), c.GetString("userID"), name, queryParams(c))
	if errors.Is(err, livequery.ErrUnknownPublication) {
		err = application.NotFound("Subscription not found")
	}
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	docs := make([]map[string]any, 0, len(records))
	for _, r := range records {
		d := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			d[k] = v
		}
		d["_id"] = r.ID
		docs = append(docs, d)
	}
	response.Success[any](c, http.StatusOK, gin.H{"collection": collection, "documents": docs}, name, map[string]any{"count": len(docs)})
}
