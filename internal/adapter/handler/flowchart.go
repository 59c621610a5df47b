package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/errors"
	dto "github.com/johnquangdev/meeting-minutes/internal/adapter/dto/flowchart"
	"github.com/johnquangdev/meeting-minutes/pkg/flowchart"
)

// Flowchart renders graphs without touching any meeting
type Flowchart struct {
	logger *zap.Logger
}

// NewFlowchartHandler creates a new flowchart handler
func NewFlowchartHandler(logger *zap.Logger) *Flowchart {
	return &Flowchart{logger: logger}
}

// Render handles POST /flowcharts/render
// @Summary      Render a flowchart
// @Description  Converts a node/edge graph into Mermaid text. Invalid nodes and dangling edges are dropped.
// @Tags         Flowcharts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      flowchart.RenderRequest  true  "Graph"
// @Success      200      {object}  flowchart.RenderResponse
// @Router       /flowcharts/render [post]
func (h *Flowchart) Render(c echo.Context) error {
	var req dto.RenderRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	text := flowchart.Render(flowchart.Graph{Nodes: req.Nodes, Edges: req.Edges})
	return HandleSuccess(h.logger, c, &dto.RenderResponse{Mermaid: text})
}
