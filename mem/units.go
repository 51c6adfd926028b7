package mem

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize is a number of bytes. It reads and prints the units used in
// memory-system configuration files, such as "32kB" and "1MB".
type ByteSize uint64

// Binary size units.
const (
	B  ByteSize = 1
	KB ByteSize = 1 << 10
	MB ByteSize = 1 << 20
	GB ByteSize = 1 << 30
)

var byteSizeSuffixes = []struct {
	suffix string
	unit   ByteSize
}{
	{"kib", KB}, {"mib", MB}, {"gib", GB},
	{"kb", KB}, {"mb", MB}, {"gb", GB},
	{"k", KB}, {"m", MB}, {"g", GB},
	{"b", B},
}

// ParseByteSize parses strings like "64", "64B", "32kB", "1MB" or "512MiB".
func ParseByteSize(s string) (ByteSize, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	unit := B

	for _, u := range byteSizeSuffixes {
		if strings.HasSuffix(str, u.suffix) {
			str = strings.TrimSpace(str[:len(str)-len(u.suffix)])
			unit = u.unit

			break
		}
	}

	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad byte size %q", ErrInvalidConfig, s)
	}

	size := ByteSize(v) * unit
	if v != 0 && size/unit != ByteSize(v) {
		return 0, fmt.Errorf("%w: byte size %q overflows", ErrInvalidConfig, s)
	}

	return size, nil
}

// String prints the size with the largest unit that divides it exactly.
func (s ByteSize) String() string {
	switch {
	case s != 0 && s%GB == 0:
		return strconv.FormatUint(uint64(s/GB), 10) + "GB"
	case s != 0 && s%MB == 0:
		return strconv.FormatUint(uint64(s/MB), 10) + "MB"
	case s != 0 && s%KB == 0:
		return strconv.FormatUint(uint64(s/KB), 10) + "kB"
	default:
		return strconv.FormatUint(uint64(s), 10) + "B"
	}
}

// MarshalText prints the size with its unit.
func (s ByteSize) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a size with or without unit.
func (s *ByteSize) UnmarshalText(text []byte) error {
	v, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}

	*s = v

	return nil
}

// MarshalYAML prints the size with its unit.
func (s ByteSize) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML accepts both plain integers and strings with units.
func (s *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: byte size must be a scalar",
			ErrInvalidConfig, value.Line)
	}

	return s.UnmarshalText([]byte(value.Value))
}
