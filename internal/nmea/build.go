// Package nmea builds GGA and RMC sentences from fused position and
// heading data, and broadcasts them to connected TCP clients.
package nmea

import (
	"fmt"
	"math"
	"strings"
	"time"

	"navit-daemon/internal/gps"
)

const knotsPerMS = 1.943844

// checksum computes the XOR of all bytes in payload (the characters
// between '$' and '*').
func checksum(payload string) byte {
	var c byte
	for i := 0; i < len(payload); i++ {
		c ^= payload[i]
	}
	return c
}

func wrap(sentenceBody string) string {
	ck := checksum(sentenceBody)
	return fmt.Sprintf("$%s*%02X\r\n", sentenceBody, ck)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// normalizeTrack wraps deg into [0, 360).
func normalizeTrack(deg float64) float64 {
	if !finite(deg) {
		return 0
	}
	d := math.Mod(deg+360.0, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}

// latLonDMM converts a decimal-degree coordinate into NMEA degrees+minutes
// form, returning the formatted field and the hemisphere letter. degWidth
// is 2 for latitude, 3 for longitude.
func latLonDMM(decimal float64, degWidth int, posLetter, negLetter string) (string, string) {
	if !finite(decimal) {
		decimal = 0
	}
	letter := posLetter
	if decimal < 0 {
		letter = negLetter
	}
	abs := math.Abs(decimal)
	deg := math.Trunc(abs)
	minutes := (abs - deg) * 60.0
	format := fmt.Sprintf("%%0%dd%%07.4f", degWidth)
	return fmt.Sprintf(format, int(deg), minutes), letter
}

func hhmmss(timeISO string) string {
	t, err := time.Parse(time.RFC3339, timeISO)
	if err != nil {
		return "000000.00"
	}
	t = t.UTC()
	return fmt.Sprintf("%02d%02d%02d.%02d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/10000000)
}

func ddmmyy(timeISO string) string {
	t, err := time.Parse(time.RFC3339, timeISO)
	if err != nil {
		return "010100"
	}
	t = t.UTC()
	return fmt.Sprintf("%02d%02d%02d", t.Day(), t.Month(), t.Year()%100)
}

// BuildGGA renders fix as a $GPGGA sentence. It never returns an error;
// malformed or missing fields degrade to documented defaults.
func BuildGGA(fix gps.Fix) string {
	latField, latHemi := latLonDMM(fix.Lat, 2, "N", "S")
	lonField, lonHemi := latLonDMM(fix.Lon, 3, "E", "W")
	alt := fix.AltM
	if !finite(alt) {
		alt = 0
	}
	body := strings.Join([]string{
		"GPGGA",
		hhmmss(fix.TimeISO),
		latField, latHemi,
		lonField, lonHemi,
		fmt.Sprintf("%d", fix.FixQuality),
		fmt.Sprintf("%02d", fix.NumSats),
		fmt.Sprintf("%.1f", safeHDOP(fix.HDOP)),
		fmt.Sprintf("%.1f", alt), "M",
		"", "", "", "",
	}, ",")
	return wrap(body)
}

func safeHDOP(h float64) float64 {
	if !finite(h) {
		return 0
	}
	return h
}

// BuildRMC renders fix as a $GPRMC sentence using headingDeg as the track
// field (already chosen by the caller between GPS track and AHRS yaw). It
// never returns an error.
func BuildRMC(fix gps.Fix, headingDeg float64) string {
	latField, latHemi := latLonDMM(fix.Lat, 2, "N", "S")
	lonField, lonHemi := latLonDMM(fix.Lon, 3, "E", "W")
	status := "V"
	if fix.Valid {
		status = "A"
	}
	speedKt := fix.SpeedMS * knotsPerMS
	if !finite(speedKt) || speedKt < 0 {
		speedKt = 0
	}
	body := strings.Join([]string{
		"GPRMC",
		hhmmss(fix.TimeISO),
		status,
		latField, latHemi,
		lonField, lonHemi,
		fmt.Sprintf("%.1f", speedKt),
		fmt.Sprintf("%.1f", normalizeTrack(headingDeg)),
		ddmmyy(fix.TimeISO),
		"", "", "",
	}, ",")
	return wrap(body)
}
