// Package servicedef defines the JSON messages exchanged with a compile service, an HTTP server
// that runs the compiler under test on behalf of the harness.
//
// The harness first sends GET to the base URL and expects a ServiceStatus. Each compilation is
// a POST of CompileParams to the base URL, answered with a CompileResult. A DELETE to the base
// URL asks the service to exit.
package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

// Capabilities a compile service may report.
const (
	CapabilityJSONDiagnostics = "json-diagnostics"
	CapabilityEnv             = "env"
	CapabilityTimeout         = "timeout"
)

type ServiceStatus struct {
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the service listed c.
func (s ServiceStatus) HasCapability(c string) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

type CompileParams struct {
	// Tag identifies the test case in service logs.
	Tag string `json:"tag"`
	// File is the fixture path relative to the fixture root; Source is its content.
	File      string              `json:"file"`
	Source    string              `json:"source"`
	Args      []string            `json:"args,omitempty"`
	Env       map[string]string   `json:"env,omitempty"`
	Revision  string              `json:"revision,omitempty"`
	TimeoutMS ldvalue.OptionalInt `json:"timeoutMs,omitempty"`
}

type CompileResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	// TimedOut is set if the service killed the compiler after TimeoutMS.
	TimedOut bool `json:"timedOut,omitempty"`
}
