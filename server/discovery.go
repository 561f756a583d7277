package server

import "net/http"

// handleJWKS implements Component K's key-publication half: the issuer
// credential's own public key, rendered as a JSON Web Key Set.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := s.cfg.Credentials[SystemCredentialIndex].JWKS()
	if err != nil {
		s.cfg.Logger.Errorf("jwks: %v", err)
		writeError(w, errInternal)
		return
	}
	writeJSON(w, set)
}

// handleDiscovery implements Component K's metadata half: a minimal OpenID
// Provider Configuration document naming the endpoints this server exposes.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"issuer":                 s.cfg.Issuer,
		"authorization_endpoint": s.cfg.Issuer + "/authorize",
		"token_endpoint":         s.cfg.Issuer + "/token",
		"userinfo_endpoint":      s.cfg.Issuer + "/userinfo",
		"jwks_uri":               s.cfg.Issuer + "/.well-known/jwks.json",
		"revocation_endpoint":    s.cfg.Issuer + "/revoke",
		"response_types_supported": []string{"code", "device"},
		"grant_types_supported": []string{
			"authorization_code",
			"urn:ietf:params:oauth:grant-type:device_code",
			"refresh_token",
		},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}
