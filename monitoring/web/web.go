// Package web holds the static page served by the cache monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the static assets. When L1ES_MONITOR_DEV is set, they
// are served from the source tree so the page can be edited live.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, thisFile, _, ok := runtime.Caller(0)
		if !ok {
			panic("error getting path")
		}

		assetPath := path.Join(path.Dir(thisFile), "dist")
		logrus.WithField("path", assetPath).
			Info("monitor development mode, serving assets from disk")

		return http.Dir(assetPath)
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

func isDevelopmentMode() bool {
	value, exist := os.LookupEnv("L1ES_MONITOR_DEV")
	if !exist {
		return false
	}

	return strings.ToLower(value) == "true" || value == "1"
}
