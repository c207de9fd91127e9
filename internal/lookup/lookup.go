// Package lookup resolves over-the-air numeric radio IDs to callsigns for
// message enrichment. The file-backed implementation serves the common
// flat-file ID lists; the database adapter serves the SQLite identity store.
package lookup

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Resolver resolves a numeric radio ID to a callsign.
type Resolver interface {
	Callsign(id uint32) (string, bool)
}

// Static is an in-memory resolver, useful for tests and small fixed lists.
type Static map[uint32]string

// Callsign implements Resolver.
func (s Static) Callsign(id uint32) (string, bool) {
	call, ok := s[id]
	return call, ok
}

// FileLookup loads a CSV radio ID list (id,callsign per line) into memory.
type FileLookup struct {
	mu           sync.RWMutex
	idToCallsign map[uint32]string
}

// NewFileLookup creates an empty file lookup; call Load before use.
func NewFileLookup() *FileLookup {
	return &FileLookup{idToCallsign: make(map[uint32]string)}
}

// Load replaces the table with the contents of the file. Malformed lines
// are skipped; the load only fails when the file cannot be read.
func (l *FileLookup) Load(filename string) (int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("lookup: open %s: %w", filename, err)
	}
	defer f.Close()

	table := make(map[uint32]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil || id == 0 {
			continue
		}
		table[uint32(id)] = strings.ToUpper(strings.TrimSpace(fields[1]))
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("lookup: read %s: %w", filename, err)
	}

	l.mu.Lock()
	l.idToCallsign = table
	l.mu.Unlock()
	return len(table), nil
}

// Callsign implements Resolver.
func (l *FileLookup) Callsign(id uint32) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	call, ok := l.idToCallsign[id]
	return call, ok
}
