package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/services"
)

// SweepController runs scheduled jobs triggered by the external scheduler
type SweepController struct {
	sweeper *services.ThresholdSweeper
}

// NewSweepController creates a sweep controller
func NewSweepController(sweeper *services.ThresholdSweeper) *SweepController {
	return &SweepController{sweeper: sweeper}
}

// RunThresholdSweep handles POST /api/v1/internal/sweeps/threshold
func (ctl *SweepController) RunThresholdSweep(c *gin.Context) {
	result, err := ctl.sweeper.Sweep(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}
