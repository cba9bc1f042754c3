//go:build globalconfig

package protocol

const GlobalConfigEnabled = true
