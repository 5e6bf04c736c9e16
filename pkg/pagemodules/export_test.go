package pagemodules

// SessionCount reports the number of editing sessions held by svc.
func SessionCount(svc Service) int {
	s := svc.(*service)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
