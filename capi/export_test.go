package capi

import "github.com/vimo-ai/eterm/app"

// AppForTesting resolves a handle to its app for white-box tests.
func AppForTesting(h AppHandle) *app.App {
	a, _ := lookup(h)
	return a
}
