// Package assets embeds the wrapper page and the scripts injected into it.
package assets

import (
	_ "embed"
)

//go:embed capture.js
var CaptureScript string

//go:embed subscribe.js
var SubscribeScript string

//go:embed bridge.html
var BridgeHTML string
