// Package browser opens URLs in the user's default browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Open launches the default browser at url.
func Open(url string) error {
	name, args, ok := command(runtime.GOOS, url)
	if !ok {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return exec.Command(name, args...).Start()
}

// command returns the launcher invocation for the platform.
func command(goos, url string) (name string, args []string, ok bool) {
	switch goos {
	case "darwin":
		return "open", []string{url}, true
	case "linux":
		return "xdg-open", []string{url}, true
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, true
	}
	return "", nil, false
}
