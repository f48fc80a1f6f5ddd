package server

import "time"

const (
	writeWait         = 10 * time.Second
	tickRate          = 15 // ticks per second (10–20 Hz)
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
	commandBufferSize = 256
)

// colorPalette assigns presence colors round-robin at join time.
var colorPalette = []string{
	"#e6194b",
	"#3cb44b",
	"#ffe119",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#46f0f0",
	"#f032e6",
	"#bcf60c",
	"#008080",
	"#9a6324",
	"#800000",
}
