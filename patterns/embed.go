// Package patterns provides embedded default rule and catalog definitions.
// screen.yaml holds the ordered security screen families; catalog.yaml holds
// the default action catalog used when no remote catalog service is
// configured.
package patterns

import _ "embed"

//go:embed screen.yaml
var screenYAML []byte

//go:embed catalog.yaml
var catalogYAML []byte

// ScreenYAML returns the embedded security screen rule families.
func ScreenYAML() []byte { return screenYAML }

// CatalogYAML returns the embedded default action catalog.
func CatalogYAML() []byte { return catalogYAML }
