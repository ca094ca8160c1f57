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
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongoecosystem/mongo-change-streams-tail/changestreams"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// Assert that Logger implements Consumer.
var _ changestreams.Consumer = (*Logger)(nil)

type Logger struct {
	out     io.Writer
	format  string
	verbose bool
	mu      sync.Mutex
}

type changeRecord struct {
	OperationType string          `json:"operation_type"`
	Database      string          `json:"database"`
	Collection    string          `json:"collection"`
	FullDocument  json.RawMessage `json:"full_document,omitempty"`
}

func (l *Logger) Consume(doc changestreams.ChangeDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.verbose {
		_, err := fmt.Fprintln(l.out, doc.String())
		return err
	}

	record := changeRecord{OperationType: doc.OperationType()}
	record.Database, record.Collection = doc.Namespace()
	if full := doc.FullDocument(); full != nil {
		ejson, err := bson.MarshalExtJSON(full, false, false)
		if err != nil {
			return err
		}
		record.FullDocument = ejson
	}

	switch l.format {
	case formatJSON:
		return json.NewEncoder(l.out).Encode(record)
	case formatText:
		full := "-"
		if record.FullDocument != nil {
			full = string(record.FullDocument)
		}
		_, err := fmt.Fprintf(l.out, "%s | %s.%s | %s\n", record.OperationType, record.Database, record.Collection, full)
		return err
	default:
		return fmt.Errorf("invalid format: %s", l.format)
	}
}
