package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/controller"
	httpHandler "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(
	r *gin.Engine,
	verifier *auth.TokenVerifier,
	socketCtl *controller.ChatSocketController,
	historyCtl *controller.ChatHistoryController,
) {
	v1 := r.Group("/api/v1")
	httpHandler.RegisterRoutes(v1, verifier, socketCtl, historyCtl)
}
