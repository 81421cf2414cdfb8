// Package syncutil holds the mutex types shared by the runner, the
// detection cache and the session log. They are plain sync mutexes unless
// the module is built with -tags=deadlock, which swaps in go-deadlock so a
// stuck observer or tick shows up as a report instead of a hang.
package syncutil

// Do runs fn with m held.
func (m *Mutex) Do(fn func()) {
	m.Lock()
	defer m.Unlock()
	fn()
}

// Read runs fn with m read-locked.
func (m *RWMutex) Read(fn func()) {
	m.RLock()
	defer m.RUnlock()
	fn()
}

// Write runs fn with m write-locked.
func (m *RWMutex) Write(fn func()) {
	m.Lock()
	defer m.Unlock()
	fn()
}
