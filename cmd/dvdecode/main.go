// Command dvdecode reads a demodulated bit stream and decodes one digital
// radio protocol from it, logging every assembled message. It is a thin
// host around the decoding pipeline: read a chunk, step the decoder, print
// what came out.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/config"
	"github.com/mmlink/dvdecode/internal/database"
	"github.com/mmlink/dvdecode/internal/input"
	"github.com/mmlink/dvdecode/internal/lookup"
	"github.com/mmlink/dvdecode/internal/metrics"
	"github.com/mmlink/dvdecode/internal/pipeline"
	"github.com/mmlink/dvdecode/internal/protocol"
	"github.com/mmlink/dvdecode/internal/radioid"
)

const version = "1.0.0"

// maxMessagesPerStep bounds how many messages one step may hand back.
const maxMessagesPerStep = 64

func main() {
	configPath := flag.String("config", "dvdecode.yaml", "path to configuration file")
	protoOverride := flag.String("protocol", "", "protocol override (p25, dstar, ysf, pocsag, m17)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dvdecode %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *protoOverride != "" {
		cfg.Protocol = *protoOverride
	}
	setupLogging(cfg.Log)

	resolver, closeResolver, err := buildResolver(cfg.Lookup)
	if err != nil {
		log.Fatalf("callsign lookup: %v", err)
	}
	if closeResolver != nil {
		defer closeResolver()
	}

	table, err := pipeline.TableFor(cfg.Protocol)
	if err != nil {
		log.Fatalf("%v", err)
	}
	dec, err := pipeline.New(table, pipeline.Config{
		Threshold:     cfg.Threshold,
		MaxFrameBits:  cfg.MaxFrameBits,
		TimeoutFrames: cfg.TimeoutFrames,
		Resolver:      resolver,
		Metrics:       metrics.New(),
	})
	if err != nil {
		log.Fatalf("decoder: %v", err)
	}

	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen)
	}

	in, err := input.Open(cfg.Input.Path, cfg.Input.Listen)
	if err != nil {
		log.Fatalf("input: %v", err)
	}
	defer in.Close()

	source := cfg.Input.Path
	if cfg.Input.Listen != "" {
		source = "udp " + cfg.Input.Listen
	}
	log.Printf("dvdecode %s: decoding %s from %s (threshold %.2f, stream %s)",
		version, cfg.Protocol, source, cfg.Threshold, dec.ID)

	if err := run(dec, in, cfg.Input); err != nil {
		log.Fatalf("decode: %v", err)
	}

	for _, m := range dec.Flush() {
		logMessage(m)
	}
	stats := dec.Stats()
	log.Printf("stream end: %d frames decoded, %d sync losses, %d bit errors corrected",
		stats.FramesDecoded, stats.SyncLosses, stats.ErrorsCorrected)
}

// run pumps input chunks through the decoder until EOF. Bits the decoder
// does not accept in one step are offered again in the next.
func run(dec *pipeline.Decoder, in io.Reader, inputCfg config.Input) error {
	chunkBytes := inputCfg.ChunkBits
	if inputCfg.Format == "packed" {
		chunkBytes = (chunkBytes + 7) / 8
	}
	raw := make([]byte, chunkBytes)
	var carry []byte

	for {
		n, err := in.Read(raw)
		if n > 0 {
			bits := raw[:n]
			if inputCfg.Format == "packed" {
				bits = protocol.UnpackBytes(bits)
			}
			carry = append(carry, bits...)
			for len(carry) > 0 {
				consumed, msgs := dec.Step(carry, maxMessagesPerStep)
				for _, m := range msgs {
					logMessage(m)
				}
				if consumed == 0 && len(msgs) == 0 {
					break
				}
				carry = carry[consumed:]
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func logMessage(m assemble.Message) {
	status := ""
	if m.Incomplete {
		status = " (incomplete)"
	}
	source := m.Source
	if m.SourceCall != "" {
		source = fmt.Sprintf("%s [%s]", m.Source, m.SourceCall)
	}
	log.Printf("%s %s%s src=%s dst=%s offset=%d frames=%d sync=%.2f errs=%d payload=%d bytes",
		m.Protocol, m.Kind, status, source, m.Destination,
		m.Offset, m.Frames, m.SyncRatio, m.Errors, len(m.Payload))
}

func setupLogging(cfg config.Log) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if cfg.Path == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func buildResolver(cfg config.Lookup) (lookup.Resolver, func(), error) {
	switch {
	case cfg.Database != "":
		db, err := database.NewDB(database.Config{Path: cfg.Database}, log.Default())
		if err != nil {
			return nil, nil, err
		}
		repo := database.NewRadioUserRepository(db.GetDB())
		cancel := func() {}
		if cfg.Sync {
			syncer := radioid.NewSyncer(repo, log.Default(),
				time.Duration(cfg.SyncIntervalHours)*time.Hour)
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go syncer.Start(ctx)
		}
		closer := func() {
			cancel()
			_ = db.Close()
		}
		return lookup.NewDatabaseLookup(repo, cfg.CacheSize), closer, nil
	case cfg.File != "":
		fl := lookup.NewFileLookup()
		n, err := fl.Load(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("loaded %d radio IDs from %s", n, cfg.File)
		return fl, nil, nil
	}
	return nil, nil, nil
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("metrics listening on %s", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Printf("metrics server: %v", err)
	}
}
