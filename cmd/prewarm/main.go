// Command prewarm bulk-resolves a list of post URLs so their media is already
// cached before users ask for it. Reads one URL per line from the file given
// as the first argument, or from stdin.
package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/Veetaha/snowpity/server"
	"github.com/Veetaha/snowpity/service/logger"
	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/service/persist/postgres"
	"github.com/gammazero/workerpool"
)

const prewarmWorkers = 4

func main() {
	server.SetDefaults()

	registry, resolver, _ := server.NewPipeline(postgres.MustCreateClient())
	defer resolver.Close()

	in := os.Stdin
	if len(os.Args) > 1 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			logger.For(nil).Fatal(err)
		}
		defer f.Close()
		in = f
	}

	wp := workerpool.New(prewarmWorkers)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parsed, ok := registry.ParseQuery(line)
		if !ok {
			logger.For(nil).Warnf("skipping unrecognized URL %q", line)
			continue
		}

		wp.Submit(func() {
			ctx := context.Background()
			cached, err := resolver.CachePost(ctx, persist.ResolveRequest{
				ID:     parsed.ID,
				Mirror: parsed.Origin,
			})
			if err != nil {
				logger.For(ctx).WithError(err).Errorf("prewarming %s", parsed.ID)
				return
			}
			logger.For(ctx).Infof("prewarmed %s with %d blobs", cached.Post.ID, len(cached.Blobs))
		})
	}
	if err := scanner.Err(); err != nil {
		logger.For(nil).Fatal(err)
	}

	wp.StopWait()
}
