package sms

import "testing"

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "plain code",
			body: "Your Woolworths one-time code is 482913",
			want: "482913",
		},
		{
			name: "code at start",
			body: "482913 is your verification code.",
			want: "482913",
		},
		{
			name: "first of two codes wins",
			body: "Use 111111 not 222222",
			want: "111111",
		},
		{
			name: "no code",
			body: "Your delivery is on its way",
			want: "",
		},
		{
			name: "too short",
			body: "Your code is 12345",
			want: "",
		},
		{
			name: "longer digit run is not a code",
			body: "Ref 1234567 for your order",
			want: "",
		},
		{
			name: "code embedded in words is not a code",
			body: "abc123456def",
			want: "",
		},
		{
			name: "punctuation boundary",
			body: "Code: 482913.",
			want: "482913",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCode(tt.body); got != tt.want {
				t.Errorf("ExtractCode(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
