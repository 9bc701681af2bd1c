package core

// Environment selects which deployment of the exchange a client talks to.
type Environment string

// Supported environments.
const (
	// EnvironmentSandbox is the exchange's test deployment.
	EnvironmentSandbox Environment = "sandbox"
	// EnvironmentLive is the production deployment.
	EnvironmentLive Environment = "live"
)

// String returns the environment name.
func (e Environment) String() string {
	return string(e)
}

// BaseURL returns the default REST base URL for the environment.
// Unknown environments fall back to the live URL.
func (e Environment) BaseURL() string {
	if e == EnvironmentSandbox {
		return SandboxBaseURL
	}
	return LiveBaseURL
}

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentLive
}
