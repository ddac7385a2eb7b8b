package http

import (
	"github.com/gin-gonic/gin"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/controller"
)

// RegisterRoutes mounts the chat endpoints under the given router group:
// the websocket endpoint (credential checked during handshake) and the
// bearer-authenticated REST history surface.
func RegisterRoutes(
	g *gin.RouterGroup,
	verifier *auth.TokenVerifier,
	socketCtl *controller.ChatSocketController,
	historyCtl *controller.ChatHistoryController,
) {
	g.GET("/chat/ws", socketCtl.Handle(verifier))

	authed := g.Group("", RequireAuth(verifier))
	authed.GET("/chats/:chatId/messages", historyCtl.Messages(IdentityFrom))
	authed.GET("/chats/:chatId/unread-count", historyCtl.UnreadCount(IdentityFrom))
}
