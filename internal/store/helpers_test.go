package store

import "testing"

func TestTableSample(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{percent: 0, want: ""},
		{percent: 100, want: ""},
		{percent: 250, want: ""},
		{percent: 2.5, want: "TABLESAMPLE SYSTEM (2.5000)"},
	}

	for _, tc := range tests {
		if got := tableSample(tc.percent); got != tc.want {
			t.Errorf("tableSample(%v) = %q, want %q", tc.percent, got, tc.want)
		}
	}
}

func TestOrNull(t *testing.T) {
	if got := orNull(""); got != "NULL" {
		t.Errorf("orNull(\"\") = %q", got)
	}

	if got := orNull("ds.id"); got != "ds.id" {
		t.Errorf("orNull(ds.id) = %q", got)
	}
}
