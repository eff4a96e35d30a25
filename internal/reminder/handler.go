package reminder

import (
	"net/http"

	"github.com/eksporyuk/affiliate-ledger/internal/response"
)

type ReminderHandler struct {
	Service *ReminderService
}

func NewReminderHandler(service *ReminderService) *ReminderHandler {
	return &ReminderHandler{Service: service}
}

// Run is the cron entry point; it is mounted behind the cron secret.
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Run(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, res)
}
