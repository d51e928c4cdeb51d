package nmea

import (
	"encoding/hex"
	"strconv"
	"strings"
	"testing"

	nmealib "github.com/adrianmo/go-nmea"

	"navit-daemon/internal/gps"
)

func splitChecksum(t *testing.T, sentence string) (payload string, ck byte) {
	t.Helper()
	if !strings.HasPrefix(sentence, "$") {
		t.Fatalf("sentence must start with $: %q", sentence)
	}
	star := strings.LastIndex(sentence, "*")
	if star < 0 {
		t.Fatalf("sentence missing checksum marker: %q", sentence)
	}
	if !strings.HasSuffix(sentence, "\r\n") {
		t.Fatalf("sentence must end with CRLF: %q", sentence)
	}
	hexPart := sentence[star+1 : len(sentence)-2]
	b, err := hex.DecodeString(hexPart)
	if err != nil || len(b) != 1 {
		t.Fatalf("bad checksum field %q: %v", hexPart, err)
	}
	return sentence[1:star], b[0]
}

func TestBuildGGAInvariants(t *testing.T) {
	fix := gps.Fix{Lat: 0, Lon: 0, Valid: true, FixQuality: 1, NumSats: 5, HDOP: 1.0, TimeISO: "2024-01-01T12:00:00Z"}
	sentence := BuildGGA(fix)
	payload, ck := splitChecksum(t, sentence)
	if checksum(payload) != ck {
		t.Fatalf("checksum mismatch: got %02X want %02X", ck, checksum(payload))
	}
	if strings.Count(sentence, "*") != 1 {
		t.Fatalf("expected exactly one '*': %q", sentence)
	}
}

func TestBuildGGAEquator(t *testing.T) {
	fix := gps.Fix{Lat: 0, Lon: 0, Valid: true, FixQuality: 1, NumSats: 5, HDOP: 1.0, TimeISO: "2024-01-01T12:00:00Z"}
	sentence := BuildGGA(fix)
	want := "$GPGGA,120000.00,0000.0000,N,00000.0000,E,1,05,1.0,0.0,M,,,,"
	if !strings.HasPrefix(sentence, want) {
		t.Fatalf("got %q, want prefix %q", sentence, want)
	}
}

func TestBuildGGAHemisphereLetters(t *testing.T) {
	fix := gps.Fix{Lat: -33.8688, Lon: 151.2093, Valid: true, TimeISO: "2024-01-01T00:00:00Z"}
	sentence := BuildGGA(fix)
	if !strings.Contains(sentence, ",S,") || !strings.Contains(sentence, ",E,") {
		t.Fatalf("expected S/E hemisphere letters: %q", sentence)
	}

	fix2 := gps.Fix{Lat: -33.8688, Lon: -70.6693, Valid: true, TimeISO: "2024-01-01T00:00:00Z"}
	sentence2 := BuildGGA(fix2)
	if !strings.Contains(sentence2, ",S,") || !strings.Contains(sentence2, ",W,") {
		t.Fatalf("expected S/W hemisphere letters: %q", sentence2)
	}
}

func TestBuildRMCTrackWraparound(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-10, 350.0},
		{370, 10.0},
		{360, 0.0},
	}
	fix := gps.Fix{Lat: 1, Lon: 1, Valid: true, TimeISO: "2024-01-01T00:00:00Z"}
	for _, c := range cases {
		sentence := BuildRMC(fix, c.in)
		fields := strings.Split(sentence, ",")
		track, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			t.Fatalf("bad track field: %v", err)
		}
		if track != c.want {
			t.Fatalf("track(%v) = %v, want %v", c.in, track, c.want)
		}
	}
}

func TestBuildRMCStatusReflectsValidity(t *testing.T) {
	valid := BuildRMC(gps.Fix{Valid: true, TimeISO: "2024-01-01T00:00:00Z"}, 0)
	invalid := BuildRMC(gps.Fix{Valid: false, TimeISO: "2024-01-01T00:00:00Z"}, 0)
	if !strings.Contains(valid, ",A,") {
		t.Fatalf("expected status A: %q", valid)
	}
	if !strings.Contains(invalid, ",V,") {
		t.Fatalf("expected status V: %q", invalid)
	}
}

func TestBuildGGANeverPanicsOnExtremeInputs(t *testing.T) {
	extremes := []gps.Fix{
		{Lat: 1e300, Lon: -1e300},
		{Lat: 9999, Lon: 9999},
		{FixQuality: -1, NumSats: -5},
		{HDOP: -1},
	}
	for _, f := range extremes {
		_ = BuildGGA(f)
		_ = BuildRMC(f, 1e9)
		_ = BuildRMC(f, -1e9)
	}
}

func TestBuiltSentencesParseWithIndependentNMEALibrary(t *testing.T) {
	fix := gps.Fix{Lat: 47.6062, Lon: -122.3321, Valid: true, FixQuality: 1, NumSats: 8, HDOP: 0.9, AltM: 56.0, SpeedMS: 3.0, TimeISO: "2024-06-01T08:30:15Z"}

	gga := strings.TrimSpace(BuildGGA(fix))
	s, err := nmealib.Parse(gga)
	if err != nil {
		t.Fatalf("go-nmea failed to parse built GGA: %v (%q)", err, gga)
	}
	if s.DataType() != nmealib.TypeGGA {
		t.Fatalf("expected GGA sentence type, got %v", s.DataType())
	}

	rmc := strings.TrimSpace(BuildRMC(fix, 270.0))
	s2, err := nmealib.Parse(rmc)
	if err != nil {
		t.Fatalf("go-nmea failed to parse built RMC: %v (%q)", err, rmc)
	}
	if s2.DataType() != nmealib.TypeRMC {
		t.Fatalf("expected RMC sentence type, got %v", s2.DataType())
	}
}
