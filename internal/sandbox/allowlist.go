package sandbox

// allowedImports is the exact import allowlist from spec.md §4.4: core
// modules plus the network-capable subset. Anything else is rejected
// with IMPORT_DENIED, both statically (prescan) and at runtime (the
// require() override).
var allowedImports = map[string]bool{
	// core
	"json": true, "math": true, "random": true, "datetime": true,
	"time": true, "re": true, "base64": true, "hashlib": true,
	"hmac": true, "secrets": true, "collections": true, "itertools": true,
	"functools": true, "io": true, "traceback": true, "typing": true,
	"copy": true, "weakref": true, "warnings": true, "email": true,
	// network
	"socket": true, "ssl": true, "http": true, "urllib": true,
	"urllib3": true, "requests": true, "certifi": true,
	"charset_normalizer": true, "idna": true,
}

// disallowedGlobals are stripped from every fresh Lua state regardless of
// the import system — they would otherwise let a script reach outside
// its capability surface (filesystem, process spawn, eval of fresh
// source, debug/metatable introspection).
var disallowedGlobals = []string{
	"os", "io", "debug", "package", "dofile", "loadfile", "load",
	"loadstring", "require_native",
}
