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

package main

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mongoecosystem/mongo-change-streams-tail/changestreams"
)

const unknownName = "(unknown)"

type opCounts struct {
	Inserts  int
	Updates  int
	Replaces int
	Deletes  int
	Other    int
}

type namespaceStats struct {
	Database   string
	Collection string
	Ops        opCounts
}

// Assert that NamespaceVisualizer implements Consumer.
var _ changestreams.Consumer = (*NamespaceVisualizer)(nil)

// NamespaceVisualizer aggregates the observed change events per
// namespace and renders the result as a Graphviz DOT graph.
type NamespaceVisualizer struct {
	namespaces map[string]*namespaceStats
	mu         sync.Mutex
	out        io.Writer
}

func NewNamespaceVisualizer(out io.Writer) *NamespaceVisualizer {
	return &NamespaceVisualizer{
		namespaces: make(map[string]*namespaceStats),
		out:        out,
	}
}

func (v *NamespaceVisualizer) Consume(doc changestreams.ChangeDocument) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	database, collection := doc.Namespace()
	if database == "" {
		database = unknownName
	}
	if collection == "" {
		collection = unknownName
	}

	key := database + "." + collection
	stats, ok := v.namespaces[key]
	if !ok {
		stats = &namespaceStats{Database: database, Collection: collection}
		v.namespaces[key] = stats
	}

	switch doc.OperationType() {
	case "insert":
		stats.Ops.Inserts++
	case "update":
		stats.Ops.Updates++
	case "replace":
		stats.Ops.Replaces++
	case "delete":
		stats.Ops.Deletes++
	default:
		stats.Ops.Other++
	}
	return nil
}

func (v *NamespaceVisualizer) Draw() {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := make([]string, 0, len(v.namespaces))
	databases := make(map[string]bool)
	for key, stats := range v.namespaces {
		keys = append(keys, key)
		databases[stats.Database] = true
	}
	sort.Strings(keys)

	databaseNames := make([]string, 0, len(databases))
	for name := range databases {
		databaseNames = append(databaseNames, name)
	}
	sort.Strings(databaseNames)

	fmt.Fprintf(v.out, "digraph {\n")
	fmt.Fprintf(v.out, "  node [shape=record];\n")
	for _, name := range databaseNames {
		fmt.Fprintf(v.out, "  \"%s\" [label=\"%s\"];\n", name, name)
	}
	for _, key := range keys {
		stats := v.namespaces[key]
		fmt.Fprintf(v.out, `  "%s" [label="{collection|inserts|updates|replaces|deletes|other}|{{%s}|{%d}|{%d}|{%d}|{%d}|{%d}}"];`,
			key, stats.Collection, stats.Ops.Inserts, stats.Ops.Updates, stats.Ops.Replaces, stats.Ops.Deletes, stats.Ops.Other)
		fmt.Fprintln(v.out, "")
	}
	for _, key := range keys {
		fmt.Fprintf(v.out, `  "%s" -> "%s"`, v.namespaces[key].Database, key)
		fmt.Fprintln(v.out, "")
	}
	fmt.Fprintf(v.out, "}\n")
}
