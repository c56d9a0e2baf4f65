package service

// Session is the authenticated caller, passed explicitly into every
// operation. A nil Session or an empty UserID means nobody is signed in.
type Session struct {
	UserID string
}

// NewSession returns the session of userID, or nil when userID is empty.
func NewSession(userID string) *Session {
	if userID == "" {
		return nil
	}
	return &Session{UserID: userID}
}

func (s *Session) user() (string, error) {
	if s == nil || s.UserID == "" {
		return "", ErrUnauthenticated
	}
	if err := validateKey("user id", s.UserID); err != nil {
		return "", err
	}
	return s.UserID, nil
}
