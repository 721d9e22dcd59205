package app

import (
	"github.com/corey/ccflags/internal/domain/flag"
)

// onBuildFileChanged handles a create/modify/delete of a build description
// file. Everything cached about the file is forgotten and every view config
// whose flags came from it is dropped, so the next request re-resolves.
func (a *App) onBuildFileChanged(absPath string) {
	path := flag.Canonical(absPath, "")
	a.Metrics.BuildFileChanged()
	a.Resolver.Caches().Forget(path)
	cleared := a.Manager.ClearOrigin(path)
	a.log.Info("build file changed", "path", path, "cleared", len(cleared))
	for _, id := range cleared {
		a.log.Debug("cleared view config", "file", id, "origin", path)
	}
}
