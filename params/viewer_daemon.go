package params

import "time"

type ViewerDaemonConfig struct {
	ListenerConfig

	// FrameInterval paces the render loop.
	FrameInterval time.Duration

	// TourPeriod is the duration of one full scripted camera orbit.
	TourPeriod time.Duration

	// FrameWidth and FrameHeight size the raster frame (and the viewport
	// container) in pixels.
	FrameWidth  int
	FrameHeight int

	// EventBufferSize is how many recent scheduler events the daemon
	// retains for the status endpoint.
	EventBufferSize int

	DataDir string
}

func DefaultViewerDaemonConfig() *ViewerDaemonConfig {
	return &ViewerDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:8075",
		},
		FrameInterval:   40 * time.Millisecond,
		TourPeriod:      30 * time.Second,
		FrameWidth:      1024,
		FrameHeight:     768,
		EventBufferSize: 256,
		DataDir:         DatadirRoot,
	}
}

func DefaultTestViewerDaemonConfig() *ViewerDaemonConfig {
	d := DefaultViewerDaemonConfig()
	d.ListenerConfig = ListenerConfig{
		Network: "tcp",
		Address: "localhost:8076",
	}
	d.FrameWidth = 320
	d.FrameHeight = 240
	d.DataDir = ""
	return d
}
