package schedules

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
	"github.com/Ste11an/facelessflow/scheduling"
)

type Handler struct {
	Repo     repository.Repository
	Schedule *scheduling.Service
}

func NewHandler(repo repository.Repository, svc *scheduling.Service) *Handler {
	return &Handler{Repo: repo, Schedule: svc}
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var in scheduling.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	sched, err := h.Schedule.Create(c.Request.Context(), httpx.UserID(c), in)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, sched)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	list, err := h.Repo.ListSchedules(c.Request.Context(), httpx.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Schedule{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CancelSchedule(c *gin.Context) {
	if err := h.Schedule.Cancel(c.Request.Context(), httpx.UserID(c), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
