package sandbox

import (
	"fmt"
	"regexp"

	"github.com/memohai/memoh/internal/botapi"
)

// requireCall matches require("name") / require('name') string-literal
// calls so disallowed imports can be rejected before the chunk is ever
// parsed or executed (spec.md §4.4: "Source must be statically
// restricted before execution").
var requireCall = regexp.MustCompile(`require\s*\(\s*['"]([A-Za-z0-9_.]+)['"]\s*\)`)

// deniedTokens are raw identifiers that have no legitimate use inside a
// restricted bot chunk; their presence is rejected outright rather than
// relying solely on the missing-global approach, as defense in depth.
var deniedTokens = regexp.MustCompile(`\b(dofile|loadfile|loadstring|getmetatable|setmetatable|rawget|rawset|rawequal)\s*\(`)

// prescan statically rejects disallowed imports and dunder-ish escape
// hatches before the source is compiled.
func prescan(source string) error {
	for _, m := range requireCall.FindAllStringSubmatch(source, -1) {
		name := m[1]
		if !allowedImports[name] {
			return fmt.Errorf("%w: import of %q is not allowed", botapi.ErrImportDenied, name)
		}
	}
	if loc := deniedTokens.FindString(source); loc != "" {
		return fmt.Errorf("%w: use of %q is not allowed in a bot chunk", botapi.ErrCompileError, loc)
	}
	return nil
}
