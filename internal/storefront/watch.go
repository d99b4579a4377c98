// internal/storefront/watch.go
package storefront

import "github.com/rovshanmuradov/fito-presale/internal/viewmodel"

// Watch subscribes to view changes. The channel holds at most one view and
// always receives the current view first. A slow reader only ever misses
// intermediate views. The returned func unsubscribes and closes the
// channel.
func (s *Service) Watch() (<-chan viewmodel.View, func()) {
	ch := make(chan viewmodel.View, 1)

	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.View()
	s.watchMu.Unlock()

	cancel := func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Watchers returns the number of live subscriptions.
func (s *Service) Watchers() int {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return len(s.watchers)
}
