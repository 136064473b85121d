package boot

import "strings"

// ParseBootArgs parses a space-separated key=value command line, as
// carried in /chosen/bootargs (e.g. "oscomp.test_timeout=5000 quiet"),
// into a map. A bare token with no "=" is stored with an empty value,
// treated as a boolean flag.
func ParseBootArgs(cmdline string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(cmdline) {
		if k, v, ok := strings.Cut(tok, "="); ok {
			out[k] = v
		} else {
			out[tok] = ""
		}
	}
	return out
}
