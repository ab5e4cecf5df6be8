package main

import (
	"os"

	"github.com/rs/zerolog/log"

	mcpserver "laptop-refresh/mcp-server"
)

func main() {
	s, err := mcpserver.NewAssetDBServer(mcpserver.NewAssetDB(nil, nil))
	if err != nil {
		log.Error().Err(err).Msg("Create server failed")
		os.Exit(1)
	}
	os.Exit(mcpserver.Main(s, os.Args[1:], mcpserver.AssetDBPort))
}
