//go:build !globalconfig

package protocol

// GlobalConfigEnabled gates OpInitConfig; build with -tags globalconfig to enable it.
const GlobalConfigEnabled = false
