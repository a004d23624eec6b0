package nuitka

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		ok     bool
	}{
		{name: "bare first line", output: "2.4.8\nCommercial: None\nPython: 3.12.1 (main)\n", want: "2.4.8", ok: true},
		{name: "nuitka prefix", output: "Nuitka 1.8.4\n", want: "1.8.4", ok: true},
		{name: "version word", output: "Nuitka version 2.1\n", want: "2.1", ok: true},
		{name: "second field", output: "nuitka v-dev\n", want: "-dev", ok: true},
		{name: "windows newlines", output: "Python: 3.11\r\nNuitka 2.0.0\r\n", want: "2.0.0", ok: true},
		{name: "garbage", output: "command not found\n", ok: false},
		{name: "empty", output: "", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseVersion(tc.output)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ParseVersion() = %q, %v; want %q, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		lhs  string
		rhs  string
		want int
	}{
		{lhs: "2.4.8", rhs: "1.0.0", want: 1},
		{lhs: "1.0", rhs: "1.0.0", want: 0},
		{lhs: "0.9.9", rhs: "1.0.0", want: -1},
		{lhs: "v2.0.1", rhs: "2.0.0", want: 1},
		{lhs: "1.2.3.4", rhs: "1.2.3", want: 1},
	}
	for _, tc := range tests {
		if got := CompareVersions(tc.lhs, tc.rhs); got != tc.want {
			t.Fatalf("CompareVersions(%q, %q) = %d, want %d", tc.lhs, tc.rhs, got, tc.want)
		}
	}
}

func TestParseOutdated(t *testing.T) {
	columns := "Package    Version Latest Type\n---------- ------- ------ -----\nrequests   2.31.0  2.32.3 wheel\nNuitka     2.4.8   2.5.1  wheel\n"
	tests := []struct {
		name      string
		output    string
		installed string
		latest    string
		ok        bool
	}{
		{name: "columns", output: columns, installed: "2.4.8", latest: "2.5.1", ok: true},
		{name: "freeze", output: "requests==2.31.0\nnuitka==2.4.8\n", installed: "2.4.8", ok: true},
		{name: "other packages only", output: "Package Version Latest Type\nrequests 2.31.0 2.32.3 wheel\n", ok: false},
		{name: "name prefix is not a match", output: "nuitka-extras 1.0 1.1 wheel\n", ok: false},
		{name: "empty", output: "", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			installed, latest, ok := ParseOutdated(tc.output)
			if ok != tc.ok || installed != tc.installed || latest != tc.latest {
				t.Fatalf("ParseOutdated = (%q, %q, %v), want (%q, %q, %v)", installed, latest, ok, tc.installed, tc.latest, tc.ok)
			}
		})
	}
}
