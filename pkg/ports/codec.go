package ports

import "github.com/voltlab/electric/pkg/domain"

// StateCodec translates between the engine's native file formats and
// the domain model.
//
// Round-trip property: encoding parameters and decoding the engine's
// echoed state must preserve particle count and ordering exactly.
type StateCodec interface {
	// Decode parses the engine's per-step state dump. Malformed or
	// truncated input yields a *domain.ParseError naming the line and
	// field that failed.
	Decode(path string) (*domain.SimulationState, error)

	// Encode writes an updated input file for the next engine
	// invocation, replacing the embedding directives while preserving
	// every other line of the template unchanged. The write is atomic:
	// no partial file is ever visible at outPath.
	Encode(params domain.EmbeddingParameters, templatePath, outPath string) error
}
