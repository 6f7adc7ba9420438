package scheduler

import (
	"testing"
	"time"

	"github.com/lcl45/openseadragon/tile"
)

func TestFrameMeter_Stats(t *testing.T) {
	m := NewFrameMeter()
	m.mark(&FrameResult{Drawn: make([]*tile.Tile, 3)}, 2*time.Millisecond)
	m.mark(&FrameResult{Dispatched: &tile.Tile{}}, 4*time.Millisecond)

	st := m.Stats()
	if st.Frames != 2 {
		t.Errorf("Expected 2 frames, but got %d", st.Frames)
	}
	if st.Dispatches != 1 {
		t.Errorf("Expected 1 dispatch, but got %d", st.Dispatches)
	}
	if st.FrameMean != 3*time.Millisecond {
		t.Errorf("Expected a 3ms mean, but got %s", st.FrameMean)
	}
	if st.FrameP95 != 4*time.Millisecond {
		t.Errorf("Expected a 4ms p95, but got %s", st.FrameP95)
	}
}
