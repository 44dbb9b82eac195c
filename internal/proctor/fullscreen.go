// Package proctor holds the integrity monitors of a live exam attempt.
//
// None of the types here are safe for concurrent use. They are owned by a
// single exam room goroutine which serialises every event source.
package proctor

// FullscreenRequester asks the client to enter (true) or leave (false)
// fullscreen mode.
type FullscreenRequester func(enter bool)

// Fullscreen tracks the client-reported fullscreen flag.
type Fullscreen struct {
	request FullscreenRequester
	active  bool
}

// NewFullscreen creates a controller. A nil requester is allowed.
func NewFullscreen(request FullscreenRequester) *Fullscreen {
	return &Fullscreen{request: request}
}

// Enter requests fullscreen. The flag only flips once the client confirms.
func (f *Fullscreen) Enter() {
	if f.request != nil {
		f.request(true)
	}
}

// Exit requests leaving fullscreen.
func (f *Fullscreen) Exit() {
	if f.request != nil {
		f.request(false)
	}
}

// SetActive records the client-reported state.
func (f *Fullscreen) SetActive(active bool) {
	f.active = active
}

// Active reports the last client-reported state.
func (f *Fullscreen) Active() bool {
	return f.active
}
