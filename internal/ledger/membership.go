package ledger

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseGroupMembers reads the group membership list: one entity identifier
// per line, blank lines and surrounding whitespace ignored.
func ParseGroupMembers(r io.Reader) (GroupSet, error) {
	set := make(GroupSet)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entity := strings.TrimSpace(scanner.Text())
		if entity == "" {
			continue
		}
		set[entity] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ParseGroupMembers: scanning: %w", err)
	}

	return set, nil
}
