package treewatch

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// persistedRoot is one row of the persisted root set (spec §4.7/§6):
// "<path>,<mask>,<max_events>", one line per rewatch-eligible root.
type persistedRoot struct {
	Path      string
	Mask      uint32
	MaxEvents int
}

// saveState writes the rewatch-eligible root set to path. A missing
// directory component is treated as a save failure; callers (the registry)
// log it as a warning rather than aborting the mutation that triggered it.
func saveState(path string, roots []persistedRoot) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("treewatch: create %q: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, root := range roots {
		fmt.Fprintf(w, "%s,%d,%d\n", root.Path, root.Mask, root.MaxEvents)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("treewatch: flush %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("treewatch: close %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("treewatch: rename %q to %q: %w", tmp, path, err)
	}
	return nil
}

// loadState reads a persisted root set. A missing file is not an error —
// it simply yields no roots. Corrupt lines are logged and skipped.
func loadState(path string, logger *slog.Logger) ([]persistedRoot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("treewatch: open %q: %w", path, err)
	}
	defer f.Close()

	var roots []persistedRoot
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		root, err := parsePersistedLine(line)
		if err != nil {
			logger.Warn("treewatch: skipping corrupt persisted-state line", slog.Int("line", lineNo), slog.Any("err", err))
			continue
		}
		roots = append(roots, root)
	}
	if err := scanner.Err(); err != nil {
		return roots, fmt.Errorf("treewatch: scan %q: %w", path, err)
	}
	return roots, nil
}

func parsePersistedLine(line string) (persistedRoot, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return persistedRoot{}, fmt.Errorf("expected 3 comma-separated fields, got %d", len(fields))
	}

	path := fields[0]
	if !strings.HasPrefix(path, "/") {
		return persistedRoot{}, fmt.Errorf("path %q is not absolute", path)
	}

	mask, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return persistedRoot{}, fmt.Errorf("invalid mask %q: %w", fields[1], err)
	}

	maxEvents, err := strconv.Atoi(fields[2])
	if err != nil {
		return persistedRoot{}, fmt.Errorf("invalid max_events %q: %w", fields[2], err)
	}

	return persistedRoot{Path: path, Mask: uint32(mask), MaxEvents: maxEvents}, nil
}
