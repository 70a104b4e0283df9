package module

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// PlatformRepoID is the repository that holds the platform pseudo-module.
// Its packages are never reported as active.
const PlatformRepoID = "@System"

const (
	platformVersion = 0
	platformContext = "00000000"
)

// ParsePlatformID splits a PLATFORM_ID value such as "platform:f28".
func ParsePlatformID(platformID string) (name, stream string, err error) {
	name, stream, ok := strings.Cut(platformID, ":")
	if !ok || name == "" || stream == "" {
		return "", "", fmt.Errorf("invalid platform id %q: want name:stream", platformID)
	}
	return name, stream, nil
}

// PlatformIDFromOSRelease reads PLATFORM_ID from an os-release file.
func PlatformIDFromOSRelease(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read os-release: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			if fields := strings.Fields(line); len(fields) > 0 && fields[0] == "PLATFORM_ID" {
				return "", fmt.Errorf("%s: malformed PLATFORM_ID line %q", path, line)
			}
			continue
		}
		if strings.TrimSpace(key) != "PLATFORM_ID" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, _, err := ParsePlatformID(value); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		return value, nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read os-release: %w", err)
	}
	return "", fmt.Errorf("%s: no PLATFORM_ID", path)
}
