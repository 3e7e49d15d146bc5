package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple endpoint no params",
			key:  CacheKey{Endpoint: "/v2/licenses"},
			want: "t3:v2/licenses",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Endpoint: "/v2/packages/active",
				QueryParams: url.Values{
					"page":          []string{"2"},
					"licenseNumber": []string{"LIC-0001"},
				},
			},
			want: "t3:v2/packages/active:licenseNumber=LIC-0001:page=2",
		},
		{
			name: "repeated params keep order",
			key: CacheKey{
				Endpoint: "/v2/packages/active",
				QueryParams: url.Values{
					"filter": []string{"label__endswith:0003", "itemName__contains:Flower"},
				},
			},
			want: "t3:v2/packages/active:filter=label__endswith:0003,itemName__contains:Flower",
		},
		{
			name: "subject scoped",
			key: CacheKey{
				Endpoint: "/v2/plants/vegetative",
				Subject:  "deadbeef",
			},
			want: "t3:v2/plants/vegetative:sub=deadbeef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Endpoint: "/v2/packages/active",
		QueryParams: url.Values{
			"z": []string{"1"},
			"a": []string{"2"},
			"m": []string{"3"},
		},
	}

	first := key.String()
	for i := 0; i < 20; i++ {
		if got := key.String(); got != first {
			t.Fatalf("CacheKey.String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint(""); got != "" {
		t.Errorf("Fingerprint(\"\") = %q, want empty", got)
	}

	a := Fingerprint("token-a")
	b := Fingerprint("token-b")
	if len(a) != 16 {
		t.Errorf("len(Fingerprint()) = %d, want 16", len(a))
	}
	if a == b {
		t.Error("different tokens produced the same fingerprint")
	}
	if a != Fingerprint("token-a") {
		t.Error("Fingerprint() is not stable")
	}
}
