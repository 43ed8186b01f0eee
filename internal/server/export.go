package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportWorkOrders streams the XLSX workbook of work orders and their tasks.
func (s *Server) exportWorkOrders(c *gin.Context) {
	processed, ok := parseProcessed(c)
	if !ok {
		return
	}
	data, err := s.export.ExportWorkOrdersXLSX(c.Request.Context(), processed)
	if err != nil {
		writeError(c, err)
		return
	}
	name := fmt.Sprintf("work-orders-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
