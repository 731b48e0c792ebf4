package auth

// Login outcomes reported to an Observer
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginInactive           = "inactive"
	LoginError              = "error"
)

// Guard rejection reasons reported to an Observer
const (
	RejectMissingAuth   = "missing_auth"
	RejectInvalidHeader = "invalid_header"
	RejectInvalidToken  = "invalid_token"
	RejectForbidden     = "forbidden"
)

// Observer receives authentication outcomes, typically to count them
type Observer interface {
	LoginAttempt(outcome string)
	GuardRejected(reason string)
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(string)  {}
func (nopObserver) GuardRejected(string) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
