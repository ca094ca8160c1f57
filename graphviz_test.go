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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongoecosystem/mongo-change-streams-tail/changestreams"
)

func makeChangeDoc(t *testing.T, op, database, collection string) changestreams.ChangeDocument {
	t.Helper()

	fields := bson.D{
		{Key: "_id", Value: bson.D{{Key: "_data", Value: "token"}}},
		{Key: "operationType", Value: op},
	}
	if database != "" || collection != "" {
		fields = append(fields, bson.E{Key: "ns", Value: bson.D{
			{Key: "db", Value: database},
			{Key: "coll", Value: collection},
		}})
	}

	raw, err := bson.Marshal(fields)
	if err != nil {
		t.Fatalf("failed to marshal change document: %v", err)
	}
	return changestreams.ChangeDocument(raw)
}

func TestNamespaceVisualizer(t *testing.T) {
	for _, test := range []struct {
		desc     string
		docs     []changestreams.ChangeDocument
		expected string
	}{
		{
			desc: "no documents",
			docs: nil,
			expected: `digraph {
  node [shape=record];
}
`,
		},
		{
			desc: "mixed operations across namespaces",
			docs: []changestreams.ChangeDocument{
				makeChangeDoc(t, "insert", "app", "users"),
				makeChangeDoc(t, "insert", "app", "users"),
				makeChangeDoc(t, "update", "app", "users"),
				makeChangeDoc(t, "delete", "app", "orders"),
				makeChangeDoc(t, "drop", "", ""),
			},
			expected: `digraph {
  node [shape=record];
  "(unknown)" [label="(unknown)"];
  "app" [label="app"];
  "(unknown).(unknown)" [label="{collection|inserts|updates|replaces|deletes|other}|{{(unknown)}|{0}|{0}|{0}|{0}|{1}}"];
  "app.orders" [label="{collection|inserts|updates|replaces|deletes|other}|{{orders}|{0}|{0}|{0}|{1}|{0}}"];
  "app.users" [label="{collection|inserts|updates|replaces|deletes|other}|{{users}|{2}|{1}|{0}|{0}|{0}}"];
  "(unknown)" -> "(unknown).(unknown)"
  "app" -> "app.orders"
  "app" -> "app.users"
}
`,
		},
	} {
		var out bytes.Buffer
		visualizer := NewNamespaceVisualizer(&out)
		for _, doc := range test.docs {
			if err := visualizer.Consume(doc); err != nil {
				t.Fatalf("%s: failed to consume: %v", test.desc, err)
			}
		}
		visualizer.Draw()

		if diff := cmp.Diff(test.expected, out.String()); diff != "" {
			t.Errorf("%s: graph mismatch (-want +got):\n%s", test.desc, diff)
		}
	}
}
