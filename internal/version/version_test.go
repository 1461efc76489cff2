package version

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateWipRoundTrip(t *testing.T) {
	wip, err := GenerateWip("1.2.3", "/home/dev/project", testNow)
	if err != nil {
		t.Fatalf("GenerateWip: %v", err)
	}
	parsed, ok := ParseWip(wip)
	if !ok {
		t.Fatalf("ParseWip(%q) = not a WIP version", wip)
	}
	if parsed.Base != "1.2.3" {
		t.Errorf("Base = %q, want %q", parsed.Base, "1.2.3")
	}
	if !parsed.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, testNow)
	}
	if parsed.Tag != WorkspaceTag("/home/dev/project") {
		t.Errorf("Tag = %q, want workspace tag", parsed.Tag)
	}
}

func TestGenerateWipDeterministic(t *testing.T) {
	a, err := GenerateWip("0.4.0", "/ws/a", testNow)
	if err != nil {
		t.Fatalf("GenerateWip: %v", err)
	}
	b, err := GenerateWip("0.4.0", "/ws/a", testNow)
	if err != nil {
		t.Fatalf("GenerateWip: %v", err)
	}
	if a != b {
		t.Errorf("same inputs produced %q and %q", a, b)
	}
}

func TestGenerateWipDistinctWorkspaces(t *testing.T) {
	a, _ := GenerateWip("0.4.0", "/ws/a", testNow)
	b, _ := GenerateWip("0.4.0", "/ws/b", testNow)
	if a == b {
		t.Errorf("distinct workspaces produced identical version %q", a)
	}
}

func TestGenerateWipRejectsPrerelease(t *testing.T) {
	if _, err := GenerateWip("1.0.0-beta.1", "/ws", testNow); err == nil {
		t.Error("GenerateWip accepted a prerelease base")
	}
}

func TestGenerateWipTimestampIsLetterLed(t *testing.T) {
	// Current-era timestamps encode in 7 digits; the 8-wide field pads
	// with 'a' so the identifier is always alphanumeric, never numeric.
	wip, err := GenerateWip("1.0.0", "/ws", testNow)
	if err != nil {
		t.Fatalf("GenerateWip: %v", err)
	}
	pre := wip[strings.IndexByte(wip, '-')+1:]
	if pre[0] != 'a' {
		t.Errorf("timestamp identifier %q does not start with 'a'", pre)
	}
}

func TestExtractBase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.2.3", "1.2.3"},
		{"1.2.3-wip", "1.2.3"},
		{"2.0.0-beta.1", "2.0.0"},
	}
	for _, tt := range tests {
		got, err := ExtractBase(tt.in)
		if err != nil {
			t.Errorf("ExtractBase(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	wip, _ := GenerateWip("3.1.4", "/ws", testNow)
	got, err := ExtractBase(wip)
	if err != nil {
		t.Fatalf("ExtractBase(%q): %v", wip, err)
	}
	if got != "3.1.4" {
		t.Errorf("ExtractBase(%q) = %q, want 3.1.4", wip, got)
	}
}

func TestExtractBaseInvalid(t *testing.T) {
	if _, err := ExtractBase("not-a-version"); err == nil {
		t.Error("ExtractBase accepted garbage")
	}
}

func TestIsLocal(t *testing.T) {
	wip, _ := GenerateWip("1.0.0", "/ws", testNow)
	tests := []struct {
		in   string
		want bool
	}{
		{"1.0.0", false},
		{"1.0.0-wip", true},
		{wip, true},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := IsLocal(tt.in); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsLegacyWip(t *testing.T) {
	if !IsLegacyWip("1.0.0-wip") {
		t.Error("IsLegacyWip(1.0.0-wip) = false")
	}
	wip, _ := GenerateWip("1.0.0", "/ws", testNow)
	if IsLegacyWip(wip) {
		t.Errorf("IsLegacyWip(%q) = true", wip)
	}
}

func TestParseWipRejectsOtherPrereleases(t *testing.T) {
	for _, in := range []string{"1.0.0", "1.0.0-wip", "1.0.0-beta.2", "1.0.0-aa.bb"} {
		if _, ok := ParseWip(in); ok {
			t.Errorf("ParseWip(%q) accepted a non-WIP version", in)
		}
	}
}

func TestNextStable(t *testing.T) {
	wip, _ := GenerateWip("1.2.0", "/ws", testNow)

	got, err := NextStable(wip, []string{"1.1.0", wip})
	if err != nil {
		t.Fatalf("NextStable: %v", err)
	}
	if got != "1.2.0" {
		t.Errorf("NextStable = %q, want 1.2.0 (base is free)", got)
	}

	got, err = NextStable(wip, []string{"1.2.0", "1.2.1", wip})
	if err != nil {
		t.Fatalf("NextStable: %v", err)
	}
	if got != "1.2.2" {
		t.Errorf("NextStable = %q, want 1.2.2 (base and next patch taken)", got)
	}
}

func TestHighestSatisfying(t *testing.T) {
	available := []string{"1.2.0", "1.3.5", "2.0.0"}

	got, ok, err := HighestSatisfying(available, "^1.2.0")
	if err != nil {
		t.Fatalf("HighestSatisfying: %v", err)
	}
	if !ok || got != "1.3.5" {
		t.Errorf("HighestSatisfying(^1.2.0) = %q, %v; want 1.3.5, true", got, ok)
	}

	got, ok, err = HighestSatisfying(available, "2.0.0")
	if err != nil {
		t.Fatalf("HighestSatisfying: %v", err)
	}
	if !ok || got != "2.0.0" {
		t.Errorf("HighestSatisfying(2.0.0) = %q, %v; want 2.0.0, true", got, ok)
	}

	if _, ok, _ := HighestSatisfying(available, "^3.0.0"); ok {
		t.Error("HighestSatisfying(^3.0.0) found a match in none")
	}

	if _, _, err := HighestSatisfying(available, "not a range"); err == nil {
		t.Error("HighestSatisfying accepted an invalid range")
	}
}

func TestSatisfies(t *testing.T) {
	ok, err := Satisfies("1.3.5", []string{"^1.2.0", ">=1.3.0"})
	if err != nil {
		t.Fatalf("Satisfies: %v", err)
	}
	if !ok {
		t.Error("Satisfies(1.3.5, [^1.2.0 >=1.3.0]) = false")
	}
	ok, err = Satisfies("2.0.0", []string{"^1.2.0"})
	if err != nil {
		t.Fatalf("Satisfies: %v", err)
	}
	if ok {
		t.Error("Satisfies(2.0.0, [^1.2.0]) = true")
	}
}

func TestSortOrdersSemverNotLexically(t *testing.T) {
	vs := []string{"1.10.0", "1.2.0", "0.9.0", "1.2.0-wip"}
	Sort(vs)
	want := []string{"0.9.0", "1.2.0-wip", "1.2.0", "1.10.0"}
	for i := range want {
		if vs[i] != want[i] {
			t.Fatalf("Sort = %v, want %v", vs, want)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, n := range []uint64{0, 1, 35, 36, 1748779200} {
		s := encode(n, timestampWidth)
		if len(s) != timestampWidth {
			t.Errorf("encode(%d) = %q, wrong width", n, s)
		}
		got, ok := decode(s)
		if !ok || got != n {
			t.Errorf("decode(encode(%d)) = %d, %v", n, got, ok)
		}
	}
}
