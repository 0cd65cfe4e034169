package boltdemo

import (
	"strings"

	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
	"github.com/davebshow/asyncbolt/internal/config"
)

// VerifyAuthFunc builds a session.VerifyAuthFunc from the loaded auth config: accept_all always
// returns true; static_token checks the INIT auth map's "principal"/"credentials" fields against
// the configured values.
func VerifyAuthFunc(auth config.Auth) func(*packstream.Map) bool {
	if !strings.EqualFold(auth.Mode, config.AuthModeStaticToken) {
		return func(*packstream.Map) bool { return true }
	}
	return func(m *packstream.Map) bool {
		if m == nil {
			return false
		}
		principal, _ := m.Get("principal")
		credentials, _ := m.Get("credentials")
		return principal == auth.Principal && credentials == auth.Credentials
	}
}
