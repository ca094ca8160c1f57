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

package changestreams

import (
	"go.mongodb.org/mongo-driver/bson"
)

// ChangeDocument is a single change event as emitted by the server.
// It keeps the raw BSON so that pipelines reshaping the event ($project,
// $addFields) are observed as-is.
// https://docs.mongodb.com/manual/reference/change-events/#change-stream-output
type ChangeDocument bson.Raw

// ResumeToken returns the event's _id field, the opaque token used to
// resume the stream after this event. It fails with
// ErrMissingResumeToken when the pipeline stripped the field.
func (d ChangeDocument) ResumeToken() (bson.Raw, error) {
	rv, err := bson.Raw(d).LookupErr("_id")
	if err != nil {
		return nil, ErrMissingResumeToken
	}
	token, ok := rv.DocumentOK()
	if !ok {
		return nil, ErrMissingResumeToken
	}
	return token, nil
}

// OperationType returns the event's operation type (insert, update,
// replace, delete, ...), or an empty string if the field is absent.
func (d ChangeDocument) OperationType() string {
	rv, err := bson.Raw(d).LookupErr("operationType")
	if err != nil {
		return ""
	}
	op, _ := rv.StringValueOK()
	return op
}

// FullDocument returns the full document embedded in the event, or nil
// when the event carries none (for example a delete, or an update
// without the updateLookup mode).
func (d ChangeDocument) FullDocument() bson.Raw {
	rv, err := bson.Raw(d).LookupErr("fullDocument")
	if err != nil {
		return nil
	}
	doc, _ := rv.DocumentOK()
	return doc
}

// Namespace returns the database and collection the event belongs to.
func (d ChangeDocument) Namespace() (database, collection string) {
	rv, err := bson.Raw(d).LookupErr("ns")
	if err != nil {
		return "", ""
	}
	ns, ok := rv.DocumentOK()
	if !ok {
		return "", ""
	}
	if db, ok := ns.Lookup("db").StringValueOK(); ok {
		database = db
	}
	if coll, ok := ns.Lookup("coll").StringValueOK(); ok {
		collection = coll
	}
	return database, collection
}

// Decode unmarshals the whole event into v.
func (d ChangeDocument) Decode(v interface{}) error {
	return bson.Unmarshal(bson.Raw(d), v)
}

// String renders the event as extended JSON.
func (d ChangeDocument) String() string {
	return bson.Raw(d).String()
}
