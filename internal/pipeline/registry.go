package pipeline

import (
	"fmt"
	"sort"

	"github.com/mmlink/dvdecode/internal/protocol"
	"github.com/mmlink/dvdecode/internal/protocol/dstar"
	"github.com/mmlink/dvdecode/internal/protocol/m17"
	"github.com/mmlink/dvdecode/internal/protocol/p25"
	"github.com/mmlink/dvdecode/internal/protocol/pocsag"
	"github.com/mmlink/dvdecode/internal/protocol/ysf"
)

var tables = map[string]func() *protocol.Table{
	"p25":    p25.Table,
	"dstar":  dstar.Table,
	"ysf":    ysf.Table,
	"pocsag": pocsag.Table,
	"m17":    m17.Table,
}

// TableFor returns a fresh parameter table for the named protocol.
func TableFor(name string) (*protocol.Table, error) {
	build, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown protocol %q (supported: %v)", name, Protocols())
	}
	return build(), nil
}

// Protocols lists the supported protocol names.
func Protocols() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
