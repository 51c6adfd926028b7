package core

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/memhier/mem"
)

const defaultTraceAccessSize = 4

// LoadTrace reads a trace file. See ParseTrace for the format.
func LoadTrace(path string) (*TraceWorkload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: trace: %v", mem.ErrInvalidConfig, err)
	}
	defer f.Close()

	return ParseTrace(f)
}

// ParseTrace parses a text trace. Each line holds one access:
//
//	<F|L|S> <hex address> [size] [hex data]
//
// The size is in bytes and defaults to 4. It must be a power of two no
// larger than 8, and the address must be aligned to it. Only stores carry
// data; a store without data writes zeros. Blank lines and everything after
// a '#' are ignored.
func ParseTrace(r io.Reader) (*TraceWorkload, error) {
	w := &TraceWorkload{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		a, err := parseTraceLine(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: trace line %d: %v",
				mem.ErrInvalidConfig, lineNo, err)
		}

		w.accesses = append(w.accesses, a)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: trace: %v", mem.ErrInvalidConfig, err)
	}

	return w, nil
}

func parseTraceLine(fields []string) (mem.Access, error) {
	var a mem.Access

	if len(fields) < 2 || len(fields) > 4 {
		return a, fmt.Errorf("expected 2 to 4 fields, got %d", len(fields))
	}

	kind, err := mem.ParseAccessKind(fields[0])
	if err != nil {
		return a, err
	}

	if kind != mem.Fetch && kind != mem.Load && kind != mem.Store {
		return a, fmt.Errorf("a core cannot issue %s", kind)
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
	if err != nil {
		return a, fmt.Errorf("bad address %q", fields[1])
	}

	size := uint64(defaultTraceAccessSize)
	if len(fields) >= 3 {
		size, err = strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return a, fmt.Errorf("bad size %q", fields[2])
		}
	}

	if size == 0 || size > 8 || bits.OnesCount64(size) != 1 {
		return a, fmt.Errorf("size %d is not 1, 2, 4, or 8", size)
	}

	if addr%size != 0 {
		return a, fmt.Errorf("address 0x%x is not aligned to %d", addr, size)
	}

	a = mem.Access{Kind: kind, Address: addr, Size: size}

	if len(fields) == 4 {
		if kind != mem.Store {
			return a, fmt.Errorf("only stores carry data")
		}

		data, err := hex.DecodeString(strings.TrimPrefix(fields[3], "0x"))
		if err != nil {
			return a, fmt.Errorf("bad data %q", fields[3])
		}

		if uint64(len(data)) != size {
			return a, fmt.Errorf("data has %d bytes, size is %d",
				len(data), size)
		}

		a.Data = data
	} else if kind == mem.Store {
		a.Data = make([]byte, size)
	}

	return a, nil
}
