// Package testing gates tests that need external services.
package testing

import (
	"os"
	"testing"
)

// Environment variables read by the helpers.
const (
	EnvUnitOnly        = "OMNI_UNIT_TESTS_ONLY"
	EnvRunIntegration  = "OMNI_RUN_INTEGRATION_TESTS"
	EnvNATSURL         = "OMNI_NATS_URL"
	DefaultNATSTestURL = "nats://127.0.0.1:4222"
)

// Unit reports whether only fast, self-contained tests should run.
// Integration tests run only when OMNI_RUN_INTEGRATION_TESTS=true and
// OMNI_UNIT_TESTS_ONLY is not set.
func Unit() bool {
	if os.Getenv(EnvUnitOnly) == "true" {
		return true
	}
	return os.Getenv(EnvRunIntegration) != "true"
}

// Integration reports whether tests may use external services such as a
// NATS server.
func Integration() bool {
	return !Unit()
}

// SkipIfUnit skips the test in unit mode.
func SkipIfUnit(t testing.TB, message ...string) {
	t.Helper()
	if Unit() {
		t.Skip(skipMessage("Skipping integration test in unit mode", message))
	}
}

// SkipIfIntegration skips the test in integration mode.
func SkipIfIntegration(t testing.TB, message ...string) {
	t.Helper()
	if Integration() {
		t.Skip(skipMessage("Skipping unit-only test in integration mode", message))
	}
}

// NATSURL returns the NATS server used by integration tests.
func NATSURL() string {
	if url := os.Getenv(EnvNATSURL); url != "" {
		return url
	}
	return DefaultNATSTestURL
}

func skipMessage(def string, message []string) string {
	if len(message) > 0 {
		return message[0]
	}
	return def
}
