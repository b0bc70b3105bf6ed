// Command dexingest is the pokédex catalog ingestion tool.
package main

import "github.com/pokedexfr/ingest/cmd"

func main() {
	cmd.Execute()
}
