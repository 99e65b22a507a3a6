package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"
	"os"
	"strings"
)

// readFilterLines reads path, skipping empty and trailing-newline-only
// lines, and returns the remaining non-blank lines with surrounding
// whitespace trimmed.
func readFilterLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// parseNetLine parses one NETS-mode filter-file line: four whitespace
// separated dotted-quad tokens "srcIP srcMask dstIP dstMask", where both
// masks are themselves dotted-quad netmasks (e.g. 255.255.255.0), not
// CIDR prefix lengths.
func parseNetLine(line string) (srcAddr uint32, srcBits uint8, dstAddr uint32, dstBits uint8, err error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected 4 tokens \"srcIP srcMask dstIP dstMask\", got %d", len(fields))
	}
	srcAddr, err = parseDottedQuad(fields[0])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("srcIP: %w", err)
	}
	srcBits, err = parseMask(fields[1])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("srcMask: %w", err)
	}
	dstAddr, err = parseDottedQuad(fields[2])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("dstIP: %w", err)
	}
	dstBits, err = parseMask(fields[3])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("dstMask: %w", err)
	}
	return srcAddr, srcBits, dstAddr, dstBits, nil
}

func parseDottedQuad(s string) (uint32, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return 0, err
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("only IPv4 addresses are supported")
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

// parseMask converts a dotted-quad netmask into a prefix length, per the
// filter's "masks are contiguous high-bit 1s" invariant.
func parseMask(s string) (uint8, error) {
	m, err := parseDottedQuad(s)
	if err != nil {
		return 0, err
	}
	return uint8(bits.OnesCount32(m)), nil
}
