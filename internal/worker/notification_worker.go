package worker

import (
	"github.com/sessiongate/auth-gateway/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the
// dispatcher. Handlers run synchronously on the publishing goroutine.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
