package featureflag

import (
	"sort"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// FeatureFlag is a lookup map of the enabled flags.
type FeatureFlag map[Flag]struct{}

// New returns feature flags initialized with the given flag names. Names are
// case insensitive and surrounding spaces are ignored. Unknown names are kept
// and logged.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}

		flag := Flag(f)
		if !flag.Known() {
			logs.WithTag("flag", f).Warn("unknown feature flag")
		}
		featureFlag[flag] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do if flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		return
	}
	do()
}

// IfNotSet runs do if flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		return
	}
	do()
}

// Strings returns the sorted names of the set flags.
func (f FeatureFlag) Strings() []string {
	names := make([]string, 0, len(f))
	for flag := range f {
		names = append(names, string(flag))
	}
	sort.Strings(names)
	return names
}
