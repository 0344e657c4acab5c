// File: internal/stealth/stealth.go

// Package stealth prepares the scripted countermeasures and seed state that
// make a fresh automation context read like a returning visitor's browser.
package stealth

import (
	_ "embed"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/socialgenius/loginforge/internal/identity"
)

//go:embed evasions.js
var evasionsScript string

const personaPlaceholder = "__PERSONA__"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// persona is the subset of the identity handed to the injected script. Field
// names are what evasions.js expects.
type persona struct {
	Platform            string   `json:"platform"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	DeviceMemory        int      `json:"deviceMemory"`
	Languages           []string `json:"languages"`
	GPUVendor           string   `json:"gpuVendor"`
	GPURenderer         string   `json:"gpuRenderer"`
	ColorScheme         string   `json:"colorScheme"`
	ReducedMotion       string   `json:"reducedMotion"`
	Contrast            string   `json:"contrast"`
	NoiseSeed           uint32   `json:"noiseSeed"`
}

// Script renders the page-bootstrap evasion script for the given identity.
// The noise seed keeps canvas/audio perturbation stable within one session:
// a fingerprint that changes between reads of the same page is itself a
// detection signal.
func Script(id identity.Identity, noiseSeed uint32) (string, error) {
	p := persona{
		Platform:            id.Platform,
		HardwareConcurrency: id.HardwareConcurrency,
		DeviceMemory:        id.DeviceMemory,
		Languages:           id.Languages,
		GPUVendor:           id.GPUVendor,
		GPURenderer:         id.GPURenderer,
		ColorScheme:         id.ColorScheme,
		ReducedMotion:       id.ReducedMotion,
		Contrast:            id.Contrast,
		NoiseSeed:           noiseSeed,
	}
	blob, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stealth persona: %w", err)
	}
	if !strings.Contains(evasionsScript, personaPlaceholder) {
		return "", fmt.Errorf("evasions script is missing the persona placeholder")
	}
	return strings.Replace(evasionsScript, personaPlaceholder, string(blob), 1), nil
}

// Headers returns the outbound header set consistent with the identity.
// Chromium manages User-Agent itself (set at launch); these cover the client
// hints and language negotiation a real Chrome would send alongside it.
func Headers(id identity.Identity) map[string]interface{} {
	ua, mobile, platform := id.ClientHints()
	return map[string]interface{}{
		"Accept-Language":    id.AcceptLanguage(),
		"sec-ch-ua":          ua,
		"sec-ch-ua-mobile":   mobile,
		"sec-ch-ua-platform": platform,
	}
}
