// Command cex runs one of the bundled example pipelines against a
// configured engine, grounded on the teacher's cmd/api/main.go: a flag plus
// godotenv-loaded config feeding a constructed service, rather than a
// hand-rolled flag/env parser.
package main

import (
	"context"
	"flag"
	"log"

	"cex/cexerr"
	"cex/config"
	"cex/engine"
	"cex/examples"
	"cex/internal/notify"
	"cex/metapg"
	"cex/namespace"
	"cex/storage"
)

func main() {
	example := flag.String("example", "sequential", "which bundled example to run (sequential, branching, diamond, shallowtracking)")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	eng := engine.New().SetRootPath(cfg.RootPath)

	if cfg.Meta.Backend == "postgres" {
		store, err := metapg.Open(context.Background(), cfg.Meta.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres metadata store: %v", err)
		}
		defer store.Close()
		eng = eng.WithMetaStore(store)
	}

	if cfg.Storage.CanUseS3() {
		mirror, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Fatalf("configure artifact mirror: %v", err)
		}
		eng = eng.WithArtifactMirror(mirror)
	}

	if cfg.Notify.Enabled {
		hub := notify.NewHub()
		eng = eng.WithObserver(hub)
		srv := notify.NewServer(cfg.Notify.Addr, hub)
		go func() {
			log.Printf("run observer listening on %s", cfg.Notify.Addr)
			if err := srv.Start(); err != nil {
				log.Printf("run observer stopped: %v", err)
			}
		}()
	}

	ns, err := buildExample(*example)
	if err != nil {
		log.Fatalf("build example %q: %v", *example, err)
	}

	runPipeline(eng, ns)
}

func buildExample(name string) (*namespace.Namespace, error) {
	switch name {
	case "branching":
		return examples.Branching()
	case "diamond":
		return examples.Diamond()
	case "shallowtracking":
		return examples.ShallowTracking()
	default:
		return examples.Sequential()
	}
}

// runPipeline mirrors the original prototype's CexExecutor.execute_pipeline:
// a validation failure logs every collected message, any other error logs
// as an unexpected runtime failure, and Engine.Run itself never swallows or
// retries either one.
func runPipeline(eng *engine.Engine, ns *namespace.Namespace) {
	err := eng.Run(context.Background(), ns)
	if err == nil {
		log.Printf("namespace %s finished", ns.Name)
		return
	}

	if vf, ok := err.(*cexerr.ValidationFailure); ok {
		log.Printf("namespace %s failed validation:", ns.Name)
		for _, msg := range vf.Messages {
			log.Printf("  - %s", msg)
		}
		return
	}

	log.Printf("namespace %s failed: %v", ns.Name, err)
}
