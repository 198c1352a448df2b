// Command sweep runs one expiry-reconciliation pass and exits. It is meant
// for cron-style scheduling where the long-running server's internal ticker
// is not wanted.
package main

import (
	"context"
	"log"

	"github.com/dkovalov/filegate/internal/server"
	"github.com/dkovalov/filegate/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer app.Close()

	app.RunExpirySweep(ctx)
}
