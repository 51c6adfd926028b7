package sim

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks, in seconds.
func (f Freq) Period() float64 {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return 1.0 / float64(f)
}

// Seconds converts a number of cycles to simulated seconds.
func (f Freq) Seconds(cycles VTimeInCycle) float64 {
	return float64(cycles) * f.Period()
}

// String prints the frequency with the largest unit that keeps it >= 1.
func (f Freq) String() string {
	switch {
	case f >= GHz:
		return strconv.FormatFloat(float64(f/GHz), 'f', -1, 64) + "GHz"
	case f >= MHz:
		return strconv.FormatFloat(float64(f/MHz), 'f', -1, 64) + "MHz"
	case f >= KHz:
		return strconv.FormatFloat(float64(f/KHz), 'f', -1, 64) + "KHz"
	default:
		return strconv.FormatFloat(float64(f), 'f', -1, 64) + "Hz"
	}
}

// ParseFreq parses strings such as "1GHz", "800MHz" or "1000".
func ParseFreq(s string) (Freq, error) {
	str := strings.TrimSpace(s)
	unit := Hz

	for _, u := range []struct {
		suffix string
		freq   Freq
	}{
		{"ghz", GHz}, {"mhz", MHz}, {"khz", KHz}, {"hz", Hz},
	} {
		if strings.HasSuffix(strings.ToLower(str), u.suffix) {
			str = str[:len(str)-len(u.suffix)]
			unit = u.freq

			break
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}

	return Freq(v) * unit, nil
}

// MarshalText prints the frequency as String does.
func (f Freq) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses the frequency with ParseFreq.
func (f *Freq) UnmarshalText(text []byte) error {
	v, err := ParseFreq(string(text))
	if err != nil {
		return err
	}

	*f = v

	return nil
}
