package main

import (
	"fmt"
	"io"

	"blockeditor/internal/sim/editor"
)

// writeMetrics writes the Prometheus text exposition of the session and index.
func writeMetrics(w io.Writer, sessionID string, m editor.Metrics, idx runtimeIndex) {
	fmt.Fprintf(w, "# HELP blockeditor_session_clients Current number of connected clients.\n")
	fmt.Fprintf(w, "# TYPE blockeditor_session_clients gauge\n")
	fmt.Fprintf(w, "blockeditor_session_clients{session=%q} %d\n", sessionID, m.Clients)

	fmt.Fprintf(w, "# HELP blockeditor_map_edits Map edit counter.\n")
	fmt.Fprintf(w, "# TYPE blockeditor_map_edits gauge\n")
	fmt.Fprintf(w, "blockeditor_map_edits{session=%q} %d\n", sessionID, m.Edits)

	fmt.Fprintf(w, "# HELP blockeditor_edit_requests_total Edit requests by outcome.\n")
	fmt.Fprintf(w, "# TYPE blockeditor_edit_requests_total counter\n")
	fmt.Fprintf(w, "blockeditor_edit_requests_total{session=%q,result=%q} %d\n", sessionID, "accepted", m.Accepted)
	fmt.Fprintf(w, "blockeditor_edit_requests_total{session=%q,result=%q} %d\n", sessionID, "rejected", m.Rejected)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(w, "# HELP blockeditor_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(w, "# TYPE blockeditor_index_queue_depth gauge\n")
	fmt.Fprintf(w, "blockeditor_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(w, "# HELP blockeditor_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(w, "# TYPE blockeditor_index_queue_capacity gauge\n")
	fmt.Fprintf(w, "blockeditor_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(w, "# HELP blockeditor_index_dropped_total Index records dropped because the queue was full.\n")
	fmt.Fprintf(w, "# TYPE blockeditor_index_dropped_total counter\n")
	fmt.Fprintf(w, "blockeditor_index_dropped_total{kind=%q} %d\n", "map", s.DropMapTotal)
	fmt.Fprintf(w, "blockeditor_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
	fmt.Fprintf(w, "blockeditor_index_dropped_total{kind=%q} %d\n", "export", s.DropExportTotal)
	fmt.Fprintf(w, "blockeditor_index_dropped_total{kind=%q} %d\n", "edit", s.DropEditTotal)
}
