package consumer

import (
	"fmt"
	"net/http"

	"github.com/adjust/rmq/v5"
)

// StatsHandler renders the rmq overview of every open queue
type StatsHandler struct {
	connection rmq.Connection
}

func NewStatsHandler(connection rmq.Connection) *StatsHandler {
	return &StatsHandler{connection: connection}
}

func (handler *StatsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	layout := request.FormValue("layout")
	refresh := request.FormValue("refresh")

	queues, err := handler.connection.GetOpenQueues()
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}

	stats, err := handler.connection.CollectStats(queues)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}

	fmt.Fprint(writer, stats.GetHtml(layout, refresh))
}
