package app

import (
	"strings"
	"testing"
)

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		require bool
		key     string
		wantErr string
	}{
		{name: "not required", require: false, key: ""},
		{name: "missing key", require: true, key: "", wantErr: "missing"},
		{name: "short key", require: true, key: "0123456789", wantErr: "too short"},
		{name: "ok", require: true, key: strings.Repeat("k", 32)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.Token.RequireHMAC = tc.require
			cfg.Token.HMACKey = tc.key

			err := ValidateSecurityConfig(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v want substring %q", err, tc.wantErr)
			}
		})
	}
}
