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

/*
Package changestreams provides an asynchronous, resumable cursor over
MongoDB change streams.

A Stream wraps the driver's blocking change-stream cursor and runs every
blocking call on a bounded worker pool, so the calling goroutine only
ever waits on a cancellable context. The stream tracks the resume token
of the last delivered document and transparently reopens the underlying
cursor once after a transient network failure.

# Example

	package main

	import (
		"context"
		"fmt"
		"log"

		"go.mongodb.org/mongo-driver/mongo"
		"go.mongodb.org/mongo-driver/mongo/options"

		"github.com/mongoecosystem/mongo-change-streams-tail/changestreams"
	)

	func main() {
		ctx := context.Background()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://localhost:27017"))
		if err != nil {
			log.Fatalf("failed to connect: %v", err)
		}
		defer client.Disconnect(ctx)

		coll := client.Database("mydb").Collection("mycoll")
		stream, err := changestreams.Watch(coll, nil)
		if err != nil {
			log.Fatalf("failed to watch: %v", err)
		}

		err = changestreams.WithStream(ctx, stream, func(ctx context.Context, s *changestreams.Stream) error {
			return s.Subscribe(ctx, changestreams.ConsumerFunc(func(doc changestreams.ChangeDocument) error {
				fmt.Printf("%s %s\n", doc.OperationType(), doc)
				return nil
			}))
		})
		if err != nil {
			log.Fatalf("failed to read stream: %v", err)
		}
	}
*/
package changestreams
