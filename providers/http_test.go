package providers

import "testing"

func TestUpstreamMessageShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"error string", `{"error":"Rate limit exceeded"}`, "Rate limit exceeded"},
		{"error object", `{"error":{"message":"bad key","type":"auth"}}`, "bad key"},
		{"detail object", `{"detail":{"status":"voice_not_found","message":"voice missing"}}`, "voice missing"},
		{"detail string", `{"detail":"Unauthorized"}`, "Unauthorized"},
		{"plain text", "  invalid api key \n", "invalid api key"},
		{"html", "<html>502</html>", ""},
		{"json without message", `{"code":500}`, ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		if got := upstreamMessage([]byte(tc.body)); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
