// Package version хранит сведения о сборке, заданные через -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build: сведения о собранном бинаре.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get возвращает сведения о сборке. Если commit не передан через -ldflags,
// берётся vcs.revision из debug.BuildInfo.
func Get() Build {
	b := Build{Version: version, Commit: commit, Date: date, GoVersion: runtime.Version()}
	if b.Commit != "unknown" {
		return b
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				b.Commit = shortRevision(setting.Value)
			case "vcs.time":
				if b.Date == "unknown" {
					b.Date = setting.Value
				}
			}
		}
	}
	return b
}

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s go=%s", b.Version, b.Commit, b.Date, b.GoVersion)
}

// String: краткая строка для логов при старте.
func String() string { return Get().String() }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// Collector отдаёт storefront_build_info со значением 1 и сведениями о сборке в метках.
func Collector() prometheus.Collector {
	b := Get()
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "storefront_build_info",
		Help: "Build information of the running storefront binary",
		ConstLabels: prometheus.Labels{
			"version":    b.Version,
			"commit":     b.Commit,
			"go_version": b.GoVersion,
		},
	}, func() float64 { return 1 })
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
