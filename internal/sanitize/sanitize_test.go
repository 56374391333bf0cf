package sanitize

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no separators", in: "job-123", want: "job-123"},
		{name: "single slash", in: "acct/job-123", want: "acct_job-123"},
		{name: "multiple slashes", in: "acct/team/job-123", want: "acct_team_job-123"},
		{name: "empty string", in: "", want: ""},
		{name: "leading slash", in: "/job-123", want: "_job-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.in); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
