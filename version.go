package gowatchmin

import "runtime/debug"

// Version is set at link time with
// -ldflags "-X github.com/ajkula/GoWatchMin.Version=v1.2.3".
var Version = ""

// GetVersion returns Version, the module version recorded in the binary, or "dev".
func GetVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == modulePath && dep.Version != "" && dep.Version != "(devel)" {
				return dep.Version
			}
		}
		if info.Main.Path == modulePath && info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

const modulePath = "github.com/ajkula/GoWatchMin"
