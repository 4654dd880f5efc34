package network

import (
	"testing"
)

// TestParseIPv4Address covers valid and invalid textual addresses.
func TestParseIPv4Address(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		want      IPv4Address
		expectErr bool
	}{
		{
			name:  "loopback",
			input: "127.0.0.1:19999",
			want:  IPv4Address{Host: 0x7F000001, Port: 19999},
		},
		{
			name:  "any address port zero",
			input: "0.0.0.0:0",
			want:  IPv4Address{},
		},
		{
			name:  "all octets used",
			input: "192.168.1.254:8080",
			want:  IPv4Address{Host: 0xC0A801FE, Port: 8080},
		},
		{
			name:      "missing port",
			input:     "127.0.0.1",
			expectErr: true,
		},
		{
			name:      "too few octets",
			input:     "127.0.1:80",
			expectErr: true,
		},
		{
			name:      "octet out of range",
			input:     "256.0.0.1:80",
			expectErr: true,
		},
		{
			name:      "port out of range",
			input:     "127.0.0.1:70000",
			expectErr: true,
		},
		{
			name:      "host name instead of address",
			input:     "localhost:80",
			expectErr: true,
		},
		{
			name:      "negative port",
			input:     "127.0.0.1:-1",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseIPv4Address(tc.input)

			if tc.expectErr {
				if err == nil {
					t.Errorf("ParseIPv4Address(%q) = %v, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIPv4Address(%q) failed: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseIPv4Address(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

// TestIPv4AddressString verifies the round trip through the textual form.
func TestIPv4AddressString(t *testing.T) {
	addr := NewIPv4Address(10, 0, 42, 7, 31337)

	if s := addr.String(); s != "10.0.42.7:31337" {
		t.Errorf("String() = %q, want %q", s, "10.0.42.7:31337")
	}

	parsed, err := ParseIPv4Address(addr.String())
	if err != nil {
		t.Fatalf("Round trip parse failed: %v", err)
	}
	if parsed != addr {
		t.Errorf("Round trip = %+v, want %+v", parsed, addr)
	}
}

// TestLoopbackAddress verifies the convenience constructor.
func TestLoopbackAddress(t *testing.T) {
	addr := LoopbackAddress(80)
	if addr.Host != 0x7F000001 || addr.Port != 80 {
		t.Errorf("LoopbackAddress(80) = %+v", addr)
	}
}
