package governor

import "testing"

func TestQuota_Exceeded(t *testing.T) {
	cases := []struct {
		name string
		q    Quota
		want bool
	}{
		{"under limit", Quota{Used: 3, Limit: 10}, false},
		{"at limit", Quota{Used: 10, Limit: 10}, true},
		{"over limit", Quota{Used: 11, Limit: 10}, true},
		{"zero limit zero used", Quota{Used: 0, Limit: 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Exceeded(); got != tc.want {
				t.Errorf("Exceeded() = %v, want %v", got, tc.want)
			}
		})
	}
}
