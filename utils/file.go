package utils

import (
	"path/filepath"
	"runtime"
)

// moduleRoot is located from this file's build path, one directory up.
var moduleRoot = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("utils: cannot locate package source")
	}
	root, err := filepath.Abs(filepath.Join(filepath.Dir(file), ".."))
	if err != nil {
		panic(err)
	}
	return root
}()

// ResolveFile maps a slash separated path relative to the module root to an absolute path, so
// fixtures such as rimage/transform/data/camera_parameters.txt resolve from any test package.
func ResolveFile(fn string) string {
	return filepath.Join(moduleRoot, filepath.FromSlash(fn))
}
