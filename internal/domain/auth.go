package domain

// AuthState is the tri-state authentication status of a client.
type AuthState string

const (
	AuthStateLoading         AuthState = "loading"
	AuthStateAuthenticated   AuthState = "authenticated"
	AuthStateUnauthenticated AuthState = "unauthenticated"
)

// Session pairs a bearer credential with the user it authenticates.
type Session struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}
