package server

import (
	"strconv"

	"github.com/conneroisu/cydonia/internal/livereload"
)

// reloadScript keeps error pages connected, so they are replaced as soon as
// the next render lands.
var reloadScript = `<script>(function(){var s=location.protocol==="https:"?"wss://":"ws://";` +
	`function c(){var w=new WebSocket(s+location.host+` + strconv.Quote(livereload.Endpoint) + `);` +
	`w.onmessage=function(){location.reload()};w.onclose=function(){setTimeout(c,1000)}}c()})();</script>`

func pageHeading(buildErr string) string {
	if buildErr != "" {
		return "Build failed"
	}
	return "Not found"
}
