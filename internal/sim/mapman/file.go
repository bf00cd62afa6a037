package mapman

import (
	"fmt"
	"strings"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/persistence/snapshot"
)

// OpenFile loads a .te3 map or a .te3.zst snapshot, chosen by extension.
// A snapshot also restores the edit counter.
func (m *Map) OpenFile(path string) error {
	if strings.HasSuffix(path, snapshot.Ext) {
		snap, err := snapshot.ReadSnapshot(path)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Document.ID == "" {
			snap.Document.ID = snap.Header.MapID
		}
		if err := m.LoadDocument(snap.Document); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		m.ResumeEdits(snap.Header.Edits)
		return nil
	}
	doc, err := mapfile.Read(path)
	if err != nil {
		return err
	}
	return m.LoadDocument(doc)
}
