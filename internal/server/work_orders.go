package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
	"github.com/joseph-ayodele/workorders-tracker/internal/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type fileView struct {
	*entity.WorkOrderFile
	PublicURL string `json:"publicUrl,omitempty"`
}

type workOrderDetail struct {
	*entity.WorkOrder
	Files []fileView              `json:"files"`
	Tasks []*entity.WorkOrderTask `json:"tasks"`
}

func parseProcessed(c *gin.Context) (*bool, bool) {
	raw := strings.TrimSpace(c.Query("processed"))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "processed must be true or false")
		return nil, false
	}
	return &v, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func (s *Server) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		badRequest(c, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) listWorkOrders(c *gin.Context) {
	processed, ok := parseProcessed(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", defaultPageSize)
	if !ok {
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}

	list, err := s.workOrders.List(c.Request.Context(), repository.ListFilter{Processed: processed, Limit: limit, Offset: offset})
	if err != nil {
		writeError(c, common.DatabaseError("failed to list work orders", err))
		return
	}
	if list == nil {
		list = []*entity.WorkOrder{}
	}
	c.JSON(http.StatusOK, gin.H{"workOrders": list, "limit": limit, "offset": offset})
}

func (s *Server) loadWorkOrder(c *gin.Context, id uuid.UUID) (*entity.WorkOrder, bool) {
	wo, err := s.workOrders.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(c, common.NotFoundError(common.CodeWorkOrderNotFound, "work order not found"))
		} else {
			writeError(c, common.DatabaseError("failed to load work order", err))
		}
		return nil, false
	}
	return wo, true
}

func (s *Server) getWorkOrder(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	wo, ok := s.loadWorkOrder(c, id)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	files, err := s.files.ListByWorkOrder(ctx, id)
	if err != nil {
		writeError(c, common.DatabaseError("failed to list work order files", err))
		return
	}
	tasks, err := s.tasks.ListByWorkOrder(ctx, id)
	if err != nil {
		writeError(c, common.DatabaseError("failed to list work order tasks", err))
		return
	}

	out := workOrderDetail{WorkOrder: wo, Files: make([]fileView, 0, len(files)), Tasks: tasks}
	if out.Tasks == nil {
		out.Tasks = []*entity.WorkOrderTask{}
	}
	for _, f := range files {
		v := fileView{WorkOrderFile: f}
		if s.store != nil {
			if key, err := storage.KeyFromURL(f.FileURL, s.keyPrefix); err == nil {
				v.PublicURL = s.store.PublicURL(key)
			}
		}
		out.Files = append(out.Files, v)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listTasks(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if _, ok := s.loadWorkOrder(c, id); !ok {
		return
	}
	tasks, err := s.tasks.ListByWorkOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, common.DatabaseError("failed to list work order tasks", err))
		return
	}
	if tasks == nil {
		tasks = []*entity.WorkOrderTask{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
