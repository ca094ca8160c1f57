//
// Copyright 2024 The mongo-change-streams-tail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// mongo-change-streams-tail is a tool to tail MongoDB change streams.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"k8s.io/klog/v2"

	"github.com/mongoecosystem/mongo-change-streams-tail/changestreams"
)

func usage() {
	command := os.Args[0]
	fmt.Printf(`Usage:
  %s [OPTIONS]

Options:
  -u, --uri=        (required)   MongoDB connection string
  -d, --database=                Database to watch (default: whole deployment)
  -c, --collection=              Collection to watch (requires --database)
  -f, --format=                  Output format [text|json] (default: text)
      --full-document=           Full document mode for updates [updateLookup]
      --resume-after=            Resume token (_data) to start after
      --max-await=               Maximum server-side wait per poll (default: 1s)
      --config=                  TOML configuration file
      --metrics-addr=            Serve Prometheus metrics on this address
      --visualize-ops            Summarize observed operations in Graphviz DOT

Help Options:
  -h, -help                      Show this help message
`, command)
}

func main() {
	var (
		uri, database, collection, format, fullDocument, resumeAfter string
		configPath, metricsAddr                                      string
		maxAwait                                                     time.Duration
		verbose, visualizeOps                                        bool
	)

	// Long options.
	flag.StringVar(&uri, "uri", "", "")
	flag.StringVar(&database, "database", "", "")
	flag.StringVar(&collection, "collection", "", "")
	flag.StringVar(&format, "format", formatText, "")
	flag.StringVar(&fullDocument, "full-document", "", "")
	flag.StringVar(&resumeAfter, "resume-after", "", "")
	flag.DurationVar(&maxAwait, "max-await", 0, "")
	flag.StringVar(&configPath, "config", "", "")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "")
	flag.BoolVar(&verbose, "verbose", false, "")
	flag.BoolVar(&visualizeOps, "visualize-ops", false, "")

	// Short options.
	flag.StringVar(&uri, "u", "", "")
	flag.StringVar(&database, "d", "", "")
	flag.StringVar(&collection, "c", "", "")
	flag.StringVar(&format, "f", formatText, "")
	flag.BoolVar(&verbose, "v", false, "")

	flag.Usage = usage
	flag.Parse()

	connectTimeout := 10 * time.Second
	if configPath != "" {
		config, err := LoadTomlConfig(configPath)
		if err != nil {
			exitf("invalid config file: %v", err)
		}
		if uri == "" {
			uri = config.MongoDB.URI
		}
		if database == "" {
			database = config.MongoDB.Database
		}
		if collection == "" {
			collection = config.MongoDB.Collection
		}
		connectTimeout = time.Duration(config.MongoDB.ConnectTimeoutSeconds) * time.Second
	}

	// Validate required options.
	if uri == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Validate optional options.
	if format != formatText && format != formatJSON {
		exitf("invalid format: %s", format)
	}
	if collection != "" && database == "" {
		exitf("--collection requires --database")
	}

	var resumeToken bson.Raw
	if resumeAfter != "" {
		token, err := bson.Marshal(bson.D{{Key: "_data", Value: resumeAfter}})
		if err != nil {
			exitf("invalid resume token: %v", err)
		}
		resumeToken = token
	}

	ctx, cancel := context.WithCancel(context.Background())
	go handleInterrupt(cancel)

	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	defer connectCancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		exitf("failed to connect: %v", err)
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(connectCtx, nil); err != nil {
		exitf("failed to ping deployment: %v", err)
	}

	var target changestreams.Target
	switch {
	case collection != "":
		target = client.Database(database).Collection(collection)
	case database != "":
		target = client.Database(database)
	default:
		target = client
	}

	config := changestreams.Config{
		FullDocument: changestreams.FullDocument(fullDocument),
		ResumeAfter:  resumeToken,
		MaxAwaitTime: maxAwait,
	}
	stream, err := changestreams.WatchWithConfig(target, nil, config)
	if err != nil {
		exitf("failed to create a stream: %v", err)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				klog.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	if visualizeOps {
		fmt.Fprintf(os.Stderr, "Reading the stream and analyzing operations...\n\n")
		visualizer := NewNamespaceVisualizer(os.Stdout)
		err := changestreams.WithStream(ctx, stream, func(ctx context.Context, s *changestreams.Stream) error {
			return s.Subscribe(ctx, visualizer)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			exitf("failed to read stream: %v", err)
		}
		visualizer.Draw()
		return
	}

	fmt.Fprintf(os.Stderr, "Reading the stream...\n")

	logger := &Logger{
		out:     os.Stdout,
		format:  format,
		verbose: verbose,
	}
	err = changestreams.WithStream(ctx, stream, func(ctx context.Context, s *changestreams.Stream) error {
		return s.Subscribe(ctx, logger)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		exitf("failed to read stream: %v", err)
	}
}

func exitf(format string, a ...interface{}) {
	message := fmt.Sprintf(format, a...)
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	fmt.Fprint(os.Stderr, message)
	os.Exit(1)
}

func handleInterrupt(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	cancel()
}
