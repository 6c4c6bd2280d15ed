package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker_gateway/internal/downstream"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/protocol/owntracks"
	"tracker_gateway/internal/session"
	"tracker_gateway/pkg/colors"
)

// OwnTracksController implements §4.4's HTTP POST transport for the
// OwnTracks JSON protocol: one JSON document per request, identified by
// "tid", replying with an empty 200/400 per §6.
type OwnTracksController struct {
	decoder  *owntracks.Decoder
	registry *session.Registry
	pipeline downstream.Pipeline
}

// NewOwnTracksController wires the decoder to the shared session registry
// and downstream pipeline.
func NewOwnTracksController(registry *session.Registry, pipeline downstream.Pipeline) *OwnTracksController {
	return &OwnTracksController{
		decoder:  owntracks.NewDecoder(),
		registry: registry,
		pipeline: pipeline,
	}
}

// Report handles POST /owntracks.
func (oc *OwnTracksController) Report(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var envelope struct {
		Tid string `json:"tid"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Tid == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	sess, ok := oc.registry.Get("http", c.ClientIP(), envelope.Tid)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	result, err := oc.decoder.Decode(sess, protocol.Frame{Body: body})
	if err != nil {
		if err == owntracks.ErrIgnored {
			c.Status(http.StatusOK)
			return
		}
		colors.PrintWarning("owntracks: malformed report from %s: %v", c.ClientIP(), err)
		c.Status(http.StatusBadRequest)
		return
	}

	for _, pos := range result.Positions {
		oc.pipeline.Publish(pos)
	}
	c.Status(http.StatusOK)
}
