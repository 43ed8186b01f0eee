package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/chat"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
)

func channelQuery(c *gin.Context) (string, bool) {
	ch := strings.TrimSpace(c.Query("channel"))
	if ch == "" {
		ch = constants.DefaultChatChannel
	}
	if err := common.NewValidator().Field("channel", ch, common.ChannelName).Err(); err != nil {
		writeError(c, err)
		return "", false
	}
	return ch, true
}

// chatSocket upgrades GET /api/chat/ws?user=&channel= and runs the session until it ends.
func (s *Server) chatSocket(c *gin.Context) {
	user, channel, err := chat.ValidateIdentity(c.Query("user"), c.Query("channel"))
	if err != nil {
		writeError(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		common.LoggerFromContext(c.Request.Context(), s.logger).Warn("chat.upgrade_failed", "error", err)
		return
	}
	s.hub.Serve(c.Request.Context(), conn, s.hub.NewClient(user, channel))
}

func (s *Server) chatHistory(c *gin.Context) {
	channel, ok := channelQuery(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	msgs, err := s.hub.History(c.Request.Context(), channel, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*entity.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"channel": channel, "messages": msgs})
}

func (s *Server) chatPresence(c *gin.Context) {
	channel, ok := channelQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": channel, "roster": s.hub.Roster(channel)})
}
