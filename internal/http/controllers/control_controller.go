// Package controllers holds the gateway's small admin HTTP surface,
// adapted from the teacher's ControlController (which mapped IMEI to a
// raw TCP connection per oil/electricity command) into a thin wrapper
// around the generic command.Dispatcher that works for any protocol.
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tracker_gateway/internal/command"
	"tracker_gateway/internal/model"
	"tracker_gateway/pkg/colors"
)

// ControlController exposes §6's sendCommand(Command) -> future over
// HTTP for operators.
type ControlController struct {
	dispatcher *command.Dispatcher
}

// NewControlController wraps a command.Dispatcher.
func NewControlController(dispatcher *command.Dispatcher) *ControlController {
	return &ControlController{dispatcher: dispatcher}
}

// commandRequest is the admin API's request body.
type commandRequest struct {
	DeviceId   uint                   `json:"deviceId" binding:"required"`
	Type       model.CommandType      `json:"type" binding:"required"`
	Attributes map[string]interface{} `json:"attributes"`
}

// SendCommand handles POST /api/v1/commands.
func (cc *ControlController) SendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := model.Command{
		DeviceId:   req.DeviceId,
		Type:       req.Type,
		Attributes: req.Attributes,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result := <-cc.dispatcher.Send(ctx, cmd)
	if result.Err != nil {
		status := http.StatusInternalServerError
		if errors.Is(result.Err, command.ErrDeviceNotConnected) {
			status = http.StatusNotFound
		}
		colors.PrintWarning("command %s for device %d failed: %v", cmd.Type, cmd.DeviceId, result.Err)
		c.JSON(status, gin.H{"error": result.Err.Error()})
		return
	}

	colors.PrintControl("command %s delivered to device %d (%d bytes)", cmd.Type, cmd.DeviceId, len(result.Bytes))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
