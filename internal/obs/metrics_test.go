package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/healthz":                          "/healthz",
		"/v1/orgs/u-ozil":                   "/v1/orgs/:id",
		"/v1/orgs/u-ozil/roles":             "/v1/orgs/:id/roles",
		"/v1/orgs/u-ozil/roles/user-7":      "/v1/orgs/:id/roles/:userID",
		"/v1/orgs/u-ozil/invitations":       "/v1/orgs/:id/invitations",
		"/v1/orgs/u-ozil/audit?limit=10":    "/v1/orgs/:id/audit",
		"/v1/profiles":                      "/v1/profiles",
		"/v1/profiles/01J8ABC":              "/v1/profiles/:id",
		"/v1/profiles/01J8ABC/submit":       "/v1/profiles/:id/submit",
		"/v1/profiles/01J8ABC/approve":      "/v1/profiles/:id/approve",
		"/v1/auth/signup":                   "/v1/auth/signup",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
