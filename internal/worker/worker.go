package worker

import (
	"github.com/spec-kit/ticket-chat/internal/service"
)

// StartWorkers subscribes background services to the event stream.
func StartWorkers(presence *service.PresenceService, notifications *service.NotificationService) {
	if presence != nil {
		presence.RegisterHandlers()
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
}
