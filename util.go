package bolt

import (
	"fmt"
	"strconv"
	"strings"
)

// SprintByteHex returns a formatted string of the byte array in hexadecimal
// with a nicely formatted human-readable output
func SprintByteHex(b []byte) string {
	output := "\t"
	for i, b := range b {
		output += fmt.Sprintf("%x", b)
		if (i+1)%16 == 0 {
			output += "\n\n\t"
		} else if (i+1)%4 == 0 {
			output += "  "
		} else {
			output += " "
		}
	}
	output += "\n"

	return output
}

// parseServerVersion extracts the numeric version from an agent string of
// the form "Neo4j/3.2.1". Agent strings that do not follow that shape
// report ok false.
func parseServerVersion(agent string) (major, minor, patch int, ok bool) {
	slash := strings.IndexByte(agent, '/')
	if slash < 0 {
		return 0, 0, 0, false
	}
	parts := strings.Split(agent[slash+1:], ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, false
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, false
	}
	if patch, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, false
	}
	return major, minor, patch, true
}

// versionBefore reports whether version a.b is older than major.minor
func versionBefore(a, b, major, minor int) bool {
	if a != major {
		return a < major
	}
	return b < minor
}
