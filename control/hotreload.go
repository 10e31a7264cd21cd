package control

var reloadHooks []func()

// RegisterReloadHook adds a listener run whenever SIGHUP triggers a
// ProxyConfig reload — e.g. logging the new allowed_ports list.
func RegisterReloadHook(fn func()) {
	reloadHooks = append(reloadHooks, fn)
}

// TriggerHotReload dispatches all reload hooks, each in its own goroutine.
func TriggerHotReload() {
	for _, fn := range reloadHooks {
		go fn()
	}
}
