package session

import "github.com/maax3v3/vorocal/internal/color"

// Status summarises the session for display.
type Status struct {
	ImageID    string `json:"imageId,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Operations int    `json:"operations"`
	Notes      int    `json:"notes"`
	CanUndo    bool   `json:"canUndo"`
	CanRedo    bool   `json:"canRedo"`
	UndoDepth  int    `json:"undoDepth"`
	RedoDepth  int    `json:"redoDepth"`
	Brush      string `json:"brush"`
	BrushName  string `json:"brushName"`
}

// HasImage reports whether an image is loaded.
func (st Status) HasImage() bool { return st.ImageID != "" }

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

func (s *Session) status() Status {
	st := Status{
		ImageID:    s.imageID,
		MimeType:   s.mimeType,
		Operations: s.ops.Len(),
		Notes:      s.notes.Len(),
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
		UndoDepth:  s.history.UndoDepth(),
		RedoDepth:  s.history.RedoDepth(),
		Brush:      s.brush,
		BrushName:  color.Moods.Label(s.brush),
	}
	if s.original != nil {
		st.Width = s.original.Bounds().Dx()
		st.Height = s.original.Bounds().Dy()
	}
	return st
}
