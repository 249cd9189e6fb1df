// Command dossier manages the Resistance agent roster, missions and
// registered signals.
package main

import "github.com/mesh-intelligence/dossier/internal/cli"

func main() {
	cli.Execute()
}
