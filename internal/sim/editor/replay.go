package editor

import "blockeditor/internal/protocol"

// Replay applies a journaled edit directly, without clients, acks or
// journaling. SAVE and SNAPSHOT are skipped. It returns the map's edit count
// and the rejection code, empty when the edit applied. Replay must not be
// called while Run is active.
func (s *Session) Replay(ed protocol.EditMsg) (uint64, string) {
	switch ed.Op {
	case protocol.OpSave, protocol.OpSnapshot:
		return s.m.Edits(), ""
	}
	if _, _, err := s.apply(ed); err != nil {
		return s.m.Edits(), codeFor(err)
	}
	s.edits.Store(s.m.Edits())
	return s.m.Edits(), ""
}
