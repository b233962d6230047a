package ingest

import (
	"context"
	"log"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/serialmux"
)

// ServeSerial subscribes to mux and routes every line until ctx is done or
// the mux closes the subscription.
func ServeSerial(ctx context.Context, mux serialmux.SerialMuxInterface, r *Router) {
	id, c := mux.Subscribe()
	defer mux.Unsubscribe(id)
	for {
		select {
		case line, ok := <-c:
			if !ok {
				log.Printf("serial subscription closed")
				return
			}
			if err := r.HandleLine(ctx, line); err != nil {
				log.Printf("error handling serial line: %v", err)
			}
		case <-ctx.Done():
			log.Printf("serial ingest routine terminated")
			return
		}
	}
}
