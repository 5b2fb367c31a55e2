package api

import (
	"fmt"
	"net/http"

	"ray/events"
)

// SSEHandler streams broker events to one client until it disconnects.
func SSEHandler(broker *events.EventBroker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		client := make(chan string, 16)
		broker.Register(client)
		defer broker.Unregister(client)

		fmt.Fprint(w, "event: connected\ndata: {\"message\":\"connected to ray events\"}\n\n")
		flusher.Flush()

		for {
			select {
			case message, ok := <-client:
				if !ok {
					return
				}
				fmt.Fprint(w, message)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
