package main

import "testing"

func TestParseSweep(t *testing.T) {
	key, values, err := parseSweep("cushion_factor=0.9, 0.95,0.99")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key != "cushion_factor" || len(values) != 3 || values[1] != 0.95 {
		t.Fatalf("unexpected sweep %s %v", key, values)
	}
	for _, bad := range []string{"", "gravity", "gravity=", "gravity=a,b"} {
		if _, _, err := parseSweep(bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}
