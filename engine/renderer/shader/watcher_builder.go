package shader

import "time"

// WatcherBuilderOption is a functional option used to configure a Watcher during construction.
type WatcherBuilderOption func(*watcher)

// WithDebounce sets how long a file must stay quiet before it is reloaded. Defaults to 50ms.
//
// Parameters:
//   - d: the debounce delay, values <= 0 reload on the first event
//
// Returns:
//   - WatcherBuilderOption: a function that sets the delay
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		w.debounce = max(d, 0)
	}
}
