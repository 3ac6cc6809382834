package export

import "testing"

func TestFormatPublished(t *testing.T) {
	tests := []struct {
		name      string
		published string
		want      string
	}{
		{
			name:      "rfc3339 utc",
			published: "2024-03-05T10:30:00Z",
			want:      "2024-03-05 10:30:00 UTC",
		},
		{
			name:      "rfc3339 with offset normalized",
			published: "2024-03-05T10:30:00+05:30",
			want:      "2024-03-05 05:00:00 UTC",
		},
		{
			name:      "loose format via lenient parse",
			published: "2024-03-05 10:30:00",
			want:      "2024-03-05 10:30:00 UTC",
		},
		{
			name:      "empty",
			published: "",
			want:      unknownDate,
		},
		{
			name:      "garbage",
			published: "last tuesday-ish",
			want:      unknownDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPublished(tt.published); got != tt.want {
				t.Errorf("formatPublished(%q) = %q, want %q", tt.published, got, tt.want)
			}
		})
	}
}
