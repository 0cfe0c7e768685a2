package obs

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Property Hub API build information.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitBuildInfo publishes build_info=1. An empty or "dev" commit falls back
// to the VCS revision stamped by the Go toolchain, when there is one.
func InitBuildInfo(version, commit string) {
	if commit == "" || commit == "dev" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
