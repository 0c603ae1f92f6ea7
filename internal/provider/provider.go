package provider

import "context"

// Transmitter is the single contract every external provider adapter
// exposes: push one formatted body to one address. Channel adapters wrap
// this with formatting and option mapping; mocking it in tests gives full
// control over provider behaviour without real HTTP calls.
type Transmitter interface {
	// TransmitRaw submits the body to the provider and returns the
	// provider-assigned message ID.
	TransmitRaw(ctx context.Context, address, body string, options map[string]any) (string, error)
}
